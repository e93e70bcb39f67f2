package index

import (
	"encoding/json"
	"net/http"
)

// IndexHandlerFn 回應服務的導覽資訊（名稱與可用端點）。
func IndexHandlerFn(w http.ResponseWriter, r *http.Request) {
	type indexInfo struct {
		Service   string   `json:"service"`
		Endpoints []string `json:"endpoints"`
	}
	info := indexInfo{
		Service: "randlab",
		Endpoints: []string{
			"GET  /v1/tables",
			"GET  /v1/draw",
			"POST /v1/draw",
			"GET  /v1/metrics",
			"GET  /v1/sim",
			"POST /v1/sim",
			"GET  /v1/simruns",
			"POST /v1/simruns",
			"POST /v1/simbycfg",
			"POST /v1/stat",
			"POST /dev/draws",
			"POST /dev/sim",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
