package v1

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/randlab/recorder"
)

type DistStat struct {
	// 權重表描述
	TableName string    `json:"table"`
	Labels    []string  `json:"labels"`
	Weights   []float64 `json:"weights"`
	Replace   bool      `json:"replace"`
	// 原始抽樣紀錄（每輪一組中選索引）
	Draws [][]int `json:"draws"`
}

// Stat 由外部提供的原始抽樣紀錄重建統計報表。
// 用途：離線批次結果（例如別台機器跑的模擬）想套用同一套報表管線。
func Stat(w http.ResponseWriter, r *http.Request) {
	// Post方法限定
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 嘗試解析
	dst := new(DistStat)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(dst.Draws) < 1 {
		http.Error(w, "draws must not be empty", http.StatusBadRequest)
		return
	}

	rec, err := recorder.NewDrawRecorder(dst.TableName, dst.Labels, dst.Weights, dst.Replace)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, idx := range dst.Draws {
		rec.Record(idx)
	}
	st := rec.Done()
	if err := json.NewEncoder(w).Encode(st); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
}
