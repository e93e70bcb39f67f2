package v1

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/zintix-labs/randlab"
	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/server/httperr"
	"github.com/zintix-labs/randlab/stats"
)

type SimHandler struct {
	Randlab *randlab.Lab
}

func NewSimHandler(lab *randlab.Lab) (*SimHandler, error) {
	return &SimHandler{Randlab: lab}, nil
}

func (sh *SimHandler) Sim(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimRequestBody struct {
		TID     catalog.TID `json:"tid"`
		Batch   int         `json:"batch"`
		Round   int         `json:"round"`
		Replace bool        `json:"replace"`
		Seed    *int64      `json:"seed,omitempty"`
	}
	// 內部結構 不影響外部 也不被外部使用
	type SimResponse struct {
		Stats    *stats.DrawReport `json:"stats"`
		UsedTime int64             `json:"used_ms"`
	}
	// ---
	req := new(SimRequestBody)
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if q.Method == http.MethodGet {
		// tid
		if s := q.URL.Query().Get("tid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("tid must be non-negative integer"))
				return
			}
			req.TID = catalog.TID(u)
		} else {
			// 直接空值
			httperr.Errs(w, errs.NewWarn("tid is required"))
			return
		}

		// batch
		if b := q.URL.Query().Get("batch"); b != "" {
			u, err := strconv.Atoi(b)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("batch must be integer"))
				return
			}
			req.Batch = u
		} else {
			httperr.Errs(w, errs.NewWarn("batch is required"))
			return
		}

		// round
		if r := q.URL.Query().Get("round"); r != "" {
			u, err := strconv.Atoi(r)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("round must be integer"))
				return
			}
			req.Round = u
		} else {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}

		// replace
		if s := q.URL.Query().Get("replace"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("replace must be bool"))
				return
			}
			req.Replace = v
		}

		// seed
		if s := q.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return
			}
			v := u
			req.Seed = &v
		}
	}
	if q.Method == http.MethodPost {
		if err := json.NewDecoder(q.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}
	// 業務檢驗
	_, ok := sh.Randlab.EntryById(req.TID)
	if !ok {
		httperr.Errs(w, errs.NewWarn("tid not found"))
		return
	}
	if req.Batch < 1 {
		httperr.Errs(w, errs.NewWarn("batch must be positive integer"))
		return
	}
	if req.Round < 1 || req.Round > 1000000 {
		httperr.Errs(w, errs.NewWarn("round must be between 1 to 1,000,000"))
		return
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	sim, err := sh.Randlab.NewSimulatorWithSeed(req.TID, *req.Seed)
	if err != nil {
		// 這裡的錯誤是來自randlab 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.TID)))
		return
	}
	st, used, err := sim.Sim(req.Batch, req.Round, req.Replace, false)
	if err != nil {
		// 這裡的錯誤來自simulator 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	resp := SimResponse{
		Stats:    st,
		UsedTime: used.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (sh *SimHandler) SimRuns(w http.ResponseWriter, r *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimRunsRequestBody struct {
		TID     catalog.TID `json:"tid"`
		Runs    int         `json:"runs"`
		Batch   int         `json:"batch"`
		Round   int         `json:"round"`
		Replace bool        `json:"replace"`
		Seed    *int64      `json:"seed,omitempty"`
	}
	// 內部結構 不影響外部 也不被外部使用
	type SimRunsResponse struct {
		StatsReport *stats.DrawReport    `json:"stats"`
		Estimator   *stats.EstimatorRuns `json:"est"`
		UsedTime    int64                `json:"used_ms"`
	}
	// ---
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := new(SimRunsRequestBody)
	if r.Method == http.MethodGet {
		tidStr := r.URL.Query().Get("tid")
		runsStr := r.URL.Query().Get("runs")
		batchStr := r.URL.Query().Get("batch")
		roundStr := r.URL.Query().Get("round")

		// tid
		if tidStr != "" {
			u, err := strconv.ParseUint(tidStr, 10, 32)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("tid must be non-negative integer"))
				return
			}
			req.TID = catalog.TID(u)
		} else {
			httperr.Errs(w, errs.NewWarn("tid is required"))
			return
		}

		// runs
		if runsStr != "" {
			runs, err := strconv.Atoi(runsStr)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("runs must be integer"))
				return
			}
			req.Runs = runs
		} else {
			httperr.Errs(w, errs.NewWarn("runs is required"))
			return
		}

		// batch
		if batchStr != "" {
			batch, err := strconv.Atoi(batchStr)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("batch must be integer"))
				return
			}
			req.Batch = batch
		} else {
			httperr.Errs(w, errs.NewWarn("batch is required"))
			return
		}

		// round
		if roundStr != "" {
			rounds, err := strconv.Atoi(roundStr)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("round must be integer"))
				return
			}
			req.Round = rounds
		} else {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}

		// replace
		if s := r.URL.Query().Get("replace"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("replace must be bool"))
				return
			}
			req.Replace = v
		}

		// seed
		if s := r.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				httperr.Errs(w, errs.NewWarn("seed must be int64"))
				return
			}
			v := u
			req.Seed = &v
		}
	}
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
	}
	// 業務邏輯判斷
	if _, ok := sh.Randlab.EntryById(req.TID); !ok {
		httperr.Errs(w, errs.NewWarn("tid not found"))
		return
	}
	if req.Runs < 1 || req.Runs > 100000 {
		httperr.Errs(w, errs.NewWarn("runs must be between 1 and 100,000"))
		return
	}
	if req.Batch < 1 {
		httperr.Errs(w, errs.NewWarn("batch must be positive integer"))
		return
	}
	if req.Round < 1 || req.Round > 15000 {
		httperr.Errs(w, errs.NewWarn("round must be between 1 and 15,000"))
		return
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	// 取得sim
	sim, err := sh.Randlab.NewSimulatorWithSeed(req.TID, *req.Seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.TID)))
		return
	}
	st, est, used, err := sim.SimRuns(4, req.Runs, req.Batch, req.Round, req.Replace, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("simulator err: %d", req.TID)))
		return
	}
	resp := &SimRunsResponse{
		StatsReport: st,
		Estimator:   est,
		UsedTime:    used.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
