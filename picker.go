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

package randlab

import (
	"crypto/rand"
	"math"
	"math/big"
	"sync"

	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/dto"
	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/sdk/core"
	"github.com/zintix-labs/randlab/sdk/randomizer"
)

// Picker 封裝一張「可對外提供 Draw」的權重表。
//
// 你可以把 Picker 視為 Randomizer 的「外殼（shell）」：
//   - 對外：提供 Draw 入口（HTTP/模擬器通常只操作 Picker）。
//   - 對內：持有 RNG（Core）與真正執行抽樣的核心（sdk/randomizer.Randomizer）。
//
// 並發語意：
//   - 同一台 Picker 的 Draw/Reweight 以 mutex 序列化：Randomizer 本身非併發安全，
//     且 Snapshot -> Sample -> Snapshot 必須是一段不可分割的序列。
//   - 若要併發模擬，由更高層建立多台 Picker 分散到不同 worker 並管理其生命週期。
//
// initseed 用於記錄出生時的 seed（追溯/重現的基礎資訊）；完整審計仍以 Core 的 Snapshot/Restore 為準。
type Picker struct {
	tableName string                         // 權重表名稱（來自 TableSetting.TableName，主要用於觀測/日誌）
	tableId   catalog.TID                    // 權重表 ID（Catalog 內唯一；用於路由與查表）
	core      *core.Core                     // RNG 核心（PRNG + Snapshot/Restore 合約；熱路徑會頻繁取樣）
	rnd       *randomizer.Randomizer[string] // 抽樣執行核心（累積權重表 + 二分搜尋）
	labels    []string                       // 母體標籤（索引對齊 TableSetting.Entries）
	weights   []float64                      // 母體權重（Reweight 後同步更新）
	drawable  int                            // 權重 > 0 的元素個數（不放回抽樣的上限）
	mu        sync.Mutex                     // 防併發鎖：保護 Randomizer 與核心狀態一致性
	initseed  int64                          // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
}

// newPicker 以「隨機 seed」建立 Picker。
//
// 這裡使用 crypto/rand 產生 seed 是為了：
//   - 在對外服務情境避免可預測 RNG
//   - 同時保留可追溯性（seed 會被記錄在 Picker.initseed）
//
// seed 只保證了新建的 Picker 起點，如果需要在任意抽樣後將 Picker "重設"到任意 Core 節點，
// 請利用 Snapshot / Restore 來操作
func newPicker(ts *catalog.TableSetting, cf core.PRNGFactory) (*Picker, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return newPickerWithSeed(ts, cf, seed.Int64())
}

// newPickerWithSeed 以指定 seed 建立 Picker。
//
// 這是最常用的「可重現」入口：同一份 TableSetting + 同一個 seed，應能得到一致的抽樣序列（取決於 Core 實作）。
//
// 建立流程（概念）：
//  1. core.New(cf.New(seed)) 建出 RNG 核心
//  2. 由 TableSetting.Entries 建出母體（label 作為元素值、weight 作為權重）
//  3. randomizer.New 建出抽樣核心（權重在這裡做最後一道合法性檢查）
func newPickerWithSeed(ts *catalog.TableSetting, cf core.PRNGFactory, seed int64) (*Picker, error) {
	if ts == nil {
		return nil, errs.NewFatal("table setting required")
	}
	if cf == nil {
		return nil, errs.NewFatal("prng factory required")
	}
	c := core.New(cf.New(seed))

	pop := make([]randomizer.Choice[string], len(ts.Entries))
	drawable := 0
	for i, e := range ts.Entries {
		pop[i] = randomizer.NewChoice(e.Label, e.Weight)
		if e.Weight > 0 {
			drawable++
		}
	}
	rnd, err := randomizer.New(c, pop)
	if err != nil {
		return nil, err
	}

	p := &Picker{
		tableName: ts.TableName,
		tableId:   ts.TableID,
		core:      c,
		rnd:       rnd,
		labels:    ts.Labels(),
		weights:   ts.Weights(),
		drawable:  drawable,
		initseed:  seed,
	}
	return p, nil
}

// Draw 為主要公開入口，會驗證抽樣請求，執行抽樣並回傳 Draw 結果。
//
// 執行序列（在 mutex 保護下不可分割）：
//  1. 校驗請求（表名/表 ID 是否對上、count 是否可滿足）
//  2. 取 start 快照（新抽時它就是回應中的 Start）
//  3. 若請求帶 start_b64u：restore 到該節點（回放/續抽）
//  4. 執行抽樣
//  5. 取 after 快照
//  6. 若是回放：把 Core restore 回進入前的節點（回放不污染本機流水）
func (p *Picker) Draw(r *dto.DrawRequest) (dto.DrawResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1. 校驗請求合法性
	if err := p.valid(r); err != nil {
		return dto.DrawResult{}, err
	}

	// 2. get start snapshot
	startsnap, err := p.SnapshotCore()
	if err != nil {
		return dto.DrawResult{}, errs.NewFatal("before snapshot error " + err.Error())
	}
	rem := startsnap

	// 3. restore if request carries a start state
	reqSnap, err := r.StartSnap()
	if err != nil {
		return dto.DrawResult{}, err
	}
	replay := len(reqSnap) != 0
	if replay {
		startsnap = reqSnap
		if err := p.RestoreCore(reqSnap); err != nil {
			return dto.DrawResult{}, errs.NewWarn("restore core err " + err.Error())
		}
	}

	// 4. sample
	indices, err := p.rnd.SampleIndices(r.Count, r.Replace)
	if err != nil {
		if replay {
			if e := p.RestoreCore(rem); e != nil {
				return dto.DrawResult{}, errs.NewFatal("fall back err " + e.Error())
			}
		}
		return dto.DrawResult{}, err
	}

	// 5. get after snapshot
	aftersnap, err := p.SnapshotCore()
	if err != nil {
		if e := p.RestoreCore(rem); e != nil {
			return dto.DrawResult{}, errs.NewFatal("fall back err " + e.Error())
		}
		return dto.DrawResult{}, errs.NewWarn("after snapshot error " + err.Error())
	}

	// 6. restore if needed
	if replay {
		if err := p.RestoreCore(rem); err != nil {
			return dto.DrawResult{}, errs.NewFatal("restore core back err " + err.Error())
		}
	}

	// 7. dto
	lbs := make([]string, len(indices))
	for i, idx := range indices {
		lbs[i] = p.labels[idx]
	}
	return dto.NewDrawResultDTO(p.tableName, p.tableId, r.Replace, indices, lbs, startsnap, aftersnap)
}

// DrawInternal 直接取得中選索引；常用於模擬器或測試
//
// 請勿在正式環境使用
//
// 此行為跳過所有請求校驗與快照序列；建構時已保證母體合法，
// 失敗（理論上只有不放回抽樣超量）以 nil 表示。
func (p *Picker) DrawInternal(count int, withReplacement bool) []int {
	indices, err := p.rnd.SampleIndices(count, withReplacement)
	if err != nil {
		return nil
	}
	return indices
}

// Reweight 更新指定索引的權重。抽樣核心會自動丟棄累積表快取，下次抽樣重建。
func (p *Picker) Reweight(idx int, weight float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.rnd.Reweight(idx, weight); err != nil {
		return err
	}
	// 同步本機快照欄位（labels 不變，weights / drawable 要跟上）
	old := p.weights[idx]
	p.weights[idx] = weight
	switch {
	case old > 0 && weight == 0:
		p.drawable--
	case old == 0 && weight > 0:
		p.drawable++
	}
	return nil
}

// Labels 回傳母體標籤（複本）。
func (p *Picker) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

// Weights 回傳母體權重（複本）。
func (p *Picker) Weights() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.weights))
	copy(out, p.weights)
	return out
}

// Drawable 回傳權重 > 0 的元素個數（不放回抽樣一次能抽到的上限）。
func (p *Picker) Drawable() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawable
}

func (p *Picker) TableName() string {
	return p.tableName
}

func (p *Picker) TableID() catalog.TID {
	return p.tableId
}

func (p *Picker) valid(req *dto.DrawRequest) error {
	if p.tableId != req.TableId {
		return errs.NewWarn("table id is not matched")
	}
	if p.tableName != req.TableName {
		return errs.NewWarn("table name is not matched")
	}
	if req.Count < 0 {
		return errs.NewWarn("count must >= 0")
	}
	if !req.Replace && req.Count > p.drawable {
		return errs.Wrap(randomizer.ErrInsufficientPopulation, "count exceeds drawable entries")
	}
	return nil
}

// SnapshotCore 取得Core狀態暫存 當前僅提供取得Core狀態
//
// 之後要實作斷線重連時候提供checkpoint加入必要恢復資訊時實作
// SnapShot() <- 保留語意
func (p *Picker) SnapshotCore() ([]byte, error) {
	return p.core.Snapshot()
}

// RestoreCore 恢復Core狀態暫存 當前僅提供恢復Core狀態
//
// 之後要實作斷線重連時候提供checkpoint加入必要恢復資訊時實作
// Restore() <- 保留語意
func (p *Picker) RestoreCore(src []byte) error {
	return p.core.Restore(src)
}
