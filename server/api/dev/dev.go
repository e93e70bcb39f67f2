// Copyright 2026 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dev 提供開發者專用的 JSON API：
// 單機台（不併發）的可重現抽樣與模擬，支援以 base64url 快照續跑/回放。
//
// 注意：這些端點每次請求都會建立新的 DevSimulator，
// 狀態交換完全依靠請求/回應內的快照字串，server 端不保留 session。
package dev

import (
	"crypto/rand"
	"encoding/json"
	"math"
	"math/big"
	"net/http"

	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/server/httperr"
	"github.com/zintix-labs/randlab/server/netsvr"
	"github.com/zintix-labs/randlab/server/svrcfg"
)

// devRequest 是 /dev 端點共用的請求體。
// Start 非空時代表「回放/續跑」：先 restore 快照再執行。
type devRequest struct {
	TID     catalog.TID `json:"tid"`
	Batch   int         `json:"batch"`
	Round   int         `json:"round"`
	Replace bool        `json:"replace"`
	Seed    *int64      `json:"seed,omitempty"`
	Start   string      `json:"start_b64u,omitempty"`
}

// Register 掛載 /dev 群組路由。
func Register(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) {
	h := &devHandler{cfg: sCfg}
	svr.Group("/dev", func(r netsvr.NetRouter) {
		r.Post("/draws", h.Draws)
		r.Post("/sim", h.Sim)
	})
}

type devHandler struct {
	cfg *svrcfg.SvrCfg
}

func (h *devHandler) decode(w http.ResponseWriter, r *http.Request) (*devRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	req := new(devRequest)
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
		return nil, false
	}
	if _, ok := h.cfg.Randlab.EntryById(req.TID); !ok {
		httperr.Errs(w, errs.NewWarn("tid not found"))
		return nil, false
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return nil, false
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	return req, true
}

// Draws 執行逐輪抽樣並回傳每輪的完整結果（含前後快照）。
func (h *devHandler) Draws(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	dev, err := h.cfg.Randlab.NewDevSimulator(req.TID, *req.Seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "build dev simulator failed"))
		return
	}
	var report any
	if req.Start != "" {
		report, err = dev.RestoreDraws(req.Start, req.Batch, req.Replace, req.Round)
	} else {
		report, err = dev.Draws(req.Batch, req.Replace, req.Round)
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// Sim 執行單機台模擬並回傳統計報表（含前後快照）。
func (h *devHandler) Sim(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	dev, err := h.cfg.Randlab.NewDevSimulator(req.TID, *req.Seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "build dev simulator failed"))
		return
	}
	var report any
	if req.Start != "" {
		report, err = dev.RestoreSim(req.Start, req.Batch, req.Replace, req.Round)
	} else {
		report, err = dev.Sim(req.Batch, req.Replace, req.Round)
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
