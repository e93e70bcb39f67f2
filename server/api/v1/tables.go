package v1

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/randlab/server/httperr"
)

// Tables 列出目前 catalog 內所有權重表的摘要（tid / name / entries）。
func (sh *SimHandler) Tables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sum, err := sh.Randlab.Summary()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sum); err != nil {
		httperr.Errs(w, err)
		return
	}
}
