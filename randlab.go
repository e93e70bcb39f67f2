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

// Package randlab 提供 Randlab 引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// 你可以把 Lab 視為一個「可被後端/模擬器使用的 runtime」，它負責把下列兩個必需的地基組裝在一起，並提供建立 Picker 的入口：
//  1. Catalog：權重表目錄（Single Source of Truth / SSOT），定義有哪些權重表、各自對應的設定檔名稱（ConfigName）。
//  2. PRNGFactory：亂數核心工廠，保證可重現（reproducible）與可審計（auditable）。
//
// 設計重點：
//   - Lab 本身不綁定任何「檔案路徑」概念：設定檔來源一律以 fs.FS 的形式注入。
//   - Lab 會持有一份 Catalog（你要跑哪一批權重表/設定檔）。
//   - Picker 是對外提供 Draw 的最小單位；抽樣邏輯本體在 sdk/randomizer。
//
// 典型使用情境：
//   - 後端服務（HTTP）：由 Lab 建立 DrawRuntime，對外提供 Draw。
//   - 模擬器（sim）：由 Lab 建立多台 Picker 進行大量模擬。
//
// 注意：此套引擎以加權抽樣領域為中心（Draw -> Result），不是泛用遊戲框架。
package randlab

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/corefmt"
	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/sdk/core"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 為什麼是 fs.FS：
//   - 你可以用 go:embed 把 configs 直接編進 binary（部署最穩定，不依賴工作目錄）。
//   - 也可以用 os.DirFS 在本機開發時讀取目錄。
//   - 甚至可以用自製的 MultiFS 來合併多個來源。
//
// Lab 不解析「路徑」：它只依賴 fs.FS + ConfigName（檔名）來取得設定內容。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Lab 是「組裝器（assembler）」與「運行入口（runtime entry）」：
//
// 它把兩個必需的地基組合起來：
//  1. Catalog：權重表目錄（SSOT），定義有哪些權重表、各自對應的設定檔名稱。
//  2. PRNGFactory：亂數核心工廠，保證可重現（reproducible）與可審計（auditable）。
//
// Lab 本身不綁定任何「檔案路徑」概念：設定檔來源一律由 fs.FS 提供。
//
// 使用流程通常分成兩階段：
//   - 註冊/組裝階段（registration/build）：建立 catalog，檢查重複與缺漏。
//   - 執行階段（runtime）：依據權重表 ID 產生 Picker，並在 Picker 上執行 Draw。
//
// 重要設計原則：
//   - Catalog 的 ID 唯一性只保證在「同一個 Lab instance」內（不同 Lab 之間不做全域保證）。
//   - 你要跑哪一批權重表、哪一套設定檔，必須由 New() 的參數明確決定。
//   - runtime 一旦開始（例如已建立 Picker 並對外服務），不建議再變更 Catalog（避免非預期行為）。
//
// 實務例子（概念示意，細節依你的實作為準）：
//
//	// 1) 準備 configs（通常是 go:embed 或 DirFS）
//	// 2) 組裝 Lab，取得可建立 Picker 的入口
//	//	lab, _ := randlab.NewAuto(core.Default(), randlab.Configs(cfgFS))
//	//	p, _ := lab.NewPicker(1001)
//	//	// p.Draw(...) -> 取得結果（通常再轉成 DTO 回傳）
type Lab struct {
	cat *catalog.Catalog
	cf  core.PRNGFactory
	sum []catalog.Summary
}

// New 建立一個 Lab instance。
//
// 這是「組裝階段（registration/build）」的入口：
//   - 會建立 Catalog（通常同時做檔名存在性/重複性檢查，避免 runtime 才爆）。
//   - 會保存 PRNGFactory，確保由這個 Lab 建出來的 Picker 在 RNG 行為上具有一致性。
//
// 參數要求（是合約的一部分）：
//   - cf 不能為 nil：沒有 RNG 工廠就無法建立可重現/可審計的核心。
//   - cfgs 至少一個：沒有設定檔來源，Catalog 無法解析 TableSetting。
//
// 回傳的 Lab 會持有：cat（目錄）、cf（RNG 工廠）。
func New(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	if cf == nil {
		return nil, errs.NewFatal("prng factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	lab := &Lab{
		cat: cata,
		cf:  cf,
	}
	return lab, nil
}

// NewAuto 建立一個直接進入執行階段的 Lab instance。
//
// 回傳的 Lab 會持有：cat（目錄，已註冊全部設定檔並凍結）、cf（RNG 工廠）。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	lab, err := New(cf, cfgs)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

func (l *Lab) Register(ents ...catalog.Entry) error {
	return l.cat.Register(ents...)
}

// RegisterAll
//
// 會掃描 catalog 持有的設定檔來源（fs.FS），把所有可辨識的設定檔（.yaml/.yml/.json）嘗試解析成
// *catalog.TableSetting，並用設定檔內宣告的 TableID/TableName 產生對應的 catalog.Entry 來批次註冊。
//
// 行為特性（重要）：
//  1. Fail-fast：任何一個檔案讀取/解析/基本檢查失敗，都會立刻回傳 error（不會忽略、也不會繼續掃完）。
//  2. 原子性：只有當「全部檔案」都成功解析並通過基本檢查時，才會呼叫 Register(...) 一次性寫入。
//     因此不會出現只註冊了一半、導致 catalog 處於半完成狀態的情況。
//  3. 穩定性：WalkDir 依檔名字典序走訪，確保行為 determinism（方便重現與除錯）。
func (l *Lab) RegisterAll() error {
	cfgs := l.cat.Cfg()
	sources := cfgs.Sources()
	if len(sources) == 0 {
		return errs.NewFatal("configs required")
	}

	entries := make([]catalog.Entry, 0, 64)
	seenID := map[catalog.TID]string{}
	seenName := map[string]string{}

	for _, src := range sources {
		walkErr := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("configs must be flat (no subdir): %q", path))
			}

			base := filepath.Base(path)
			if strings.Contains(path, "/") && path != base {
				return errs.NewFatal(fmt.Sprintf("configs must be flat (nested path): %q", path))
			}
			if strings.HasPrefix(base, ".") {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(base))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				return nil
			}

			raw, rerr := fs.ReadFile(src, path)
			if rerr != nil {
				return errs.NewFatal(fmt.Sprintf("read config failed: %s", base))
			}

			var (
				ts   *catalog.TableSetting
				terr error
			)
			switch ext {
			case ".yaml", ".yml":
				ts, terr = catalog.GetTableSettingByYAML(raw)
			case ".json":
				ts, terr = catalog.GetTableSettingByJSON(raw)
			default:
				return errs.NewFatal(fmt.Sprintf("unsupported config format: %q", base))
			}
			if terr != nil {
				return errs.NewFatal(fmt.Sprintf("parse tablesetting failed: %s", base))
			}

			name := strings.TrimSpace(ts.TableName)
			if name == "" {
				return errs.NewFatal(fmt.Sprintf("table name required: %s", base))
			}

			id := ts.TableID
			if prev, ok := seenID[id]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate table id: %d (config=%s and %s)", id, prev, base))
			}
			if _, ok := l.cat.GetByID(id); ok {
				return errs.NewFatal(fmt.Sprintf("table id already registered: %d (config=%s)", id, base))
			}
			seenID[id] = base

			nameKey := strings.ToLower(name)
			if prev, ok := seenName[nameKey]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate table name: %s (config=%s and %s)", nameKey, prev, base))
			}
			if _, ok := l.cat.GetByName(name); ok {
				return errs.NewFatal(fmt.Sprintf("table name already registered: %s (config=%s)", name, base))
			}
			seenName[nameKey] = base

			entries = append(entries, catalog.Entry{
				TID:        id,
				Name:       name,
				ConfigName: base,
			})
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}

	return l.cat.Register(entries...)
}

func (l *Lab) Freeze() {
	l.cat.Freeze()
}

func (l *Lab) EntryById(id catalog.TID) (catalog.Entry, bool) {
	return l.cat.GetByID(id)
}

func (l *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return l.cat.GetByName(name)
}

func (l *Lab) IDs() []catalog.TID {
	return l.cat.IDs()
}

func (l *Lab) All() []catalog.Entry {
	return l.cat.All()
}

func (l *Lab) TableSettingById(id catalog.TID) (*catalog.TableSetting, error) {
	return l.cat.TableSettingById(id)
}

func (l *Lab) Summary() ([]catalog.Summary, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if l.sum != nil {
		return l.sum, nil
	}
	ids := l.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		ts, err := l.cat.TableSettingById(id)
		if err != nil {
			return nil, errs.NewFatal("parse table setting failed")
		}
		s := catalog.Summary{
			TID:     id,
			Name:    ts.TableName,
			Entries: len(ts.Entries),
		}
		cs = append(cs, s)
	}
	l.sum = cs
	return l.sum, nil
}

// NewPicker 依據 Catalog 內的權重表 ID 建立一台 Picker。
//
// 行為：
//  1. 由 Catalog 取得對應的 TableSetting（通常來自 fs.FS 內的 YAML/JSON）。
//  2. 以 PRNGFactory 產生 RNG 核心（seed 由 crypto/rand 產生）。
//  3. 由 TableSetting 建出抽樣核心（randomizer）。
//
// 注意：seed 會被記錄在 Picker 內（initseed），用於追溯/重現；真正的可審計能力以 Core 的 Snapshot/Restore 合約為準。
func (l *Lab) NewPicker(id catalog.TID) (*Picker, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ts, err := l.cat.TableSettingById(id)
	if err != nil {
		return nil, err
	}
	return newPicker(ts, l.cf)
}

// NewPickerWithSeed 與 NewPicker 相同，但由呼叫端指定初始 seed。
//
// 使用情境：
//   - 可重現的測試：同一份設定 + 同一個 seed，應產生一致的抽樣序列（取決於 Core 實作）。
//
// 注意：seed 只是「出生入口」。若要在任意時間點完整重現，請使用 Core 的 Snapshot/Restore（以 []byte 交換狀態）。
func (l *Lab) NewPickerWithSeed(id catalog.TID, seed int64) (*Picker, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ts, err := l.cat.TableSettingById(id)
	if err != nil {
		return nil, err
	}
	return newPickerWithSeed(ts, l.cf, seed)
}

func (l *Lab) NewPickerByJSON(raw []byte, seed int64) (*Picker, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := catalog.GetTableSettingByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := l.validCfg(cfg); err != nil {
		return nil, err
	}
	return newPickerWithSeed(cfg, l.cf, seed)
}

func (l *Lab) NewPickerByYAML(raw []byte, seed int64) (*Picker, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := catalog.GetTableSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := l.validCfg(cfg); err != nil {
		return nil, err
	}
	return newPickerWithSeed(cfg, l.cf, seed)
}

func (l *Lab) validCfg(cfg *catalog.TableSetting) error {
	ent, ok := l.cat.GetByID(cfg.TableID)
	if !ok {
		return errs.NewWarn("tid not exist")
	}
	ent2, ok := l.cat.GetByName(cfg.TableName)
	if !ok {
		return errs.NewWarn("table name not exist")
	}
	if ent.TID != ent2.TID {
		return errs.NewWarn("table id is not matched table name")
	}
	return nil
}

func (l *Lab) NewSimulator(id catalog.TID) (*Simulator, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ts, err := l.cat.TableSettingById(id)
	if err != nil {
		return nil, err
	}
	return newSimulator(ts, l.cf)
}

func (l *Lab) NewSimulatorWithSeed(id catalog.TID, seed int64) (*Simulator, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ts, err := l.cat.TableSettingById(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, l.cf, seed)
}

func (l *Lab) NewSimulatorByJSON(raw []byte, seed int64) (*Simulator, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := catalog.GetTableSettingByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := l.validCfg(cfg); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(cfg, l.cf, seed)
}

func (l *Lab) NewSimulatorByYAML(raw []byte, seed int64) (*Simulator, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	cfg, err := catalog.GetTableSettingByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := l.validCfg(cfg); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(cfg, l.cf, seed)
}

func (l *Lab) BuildRuntime(poolSize int) (*DrawRuntime, error) {
	// 1. 進入 runtime 前，catalog 必須 Freeze
	l.Freeze()

	ids := l.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no tables registered")
	}

	rt := &DrawRuntime{
		lab:      l,
		pools:    make(map[catalog.TID]*PickerPool, len(ids)),
		ids:      ids,
		done:     make(chan struct{}),
		poolSize: max(1, poolSize),
	}
	rt.reason.Store("")

	// 2. 先全建好（fail-fast + cleanup）
	for _, id := range ids {
		ts, err := l.cat.TableSettingById(id)
		if err != nil {
			return nil, err
		}

		seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		mp, err := newPickerPool(rt.poolSize, ts, l.cf, seed.Int64())
		if err != nil {
			return nil, err
		}
		rt.pools[id] = mp
	}
	return rt, nil
}

// NewDevSimulator
//
// 注意只能由 Lab 起
// 只提供給 Dev 模式使用的模擬器，重點是保持單機台模式所以保持可重現性
func (l *Lab) NewDevSimulator(tid catalog.TID, seed int64) (*DevSimulator, error) {
	sim, err := l.NewSimulatorWithSeed(tid, seed)
	if err != nil {
		return nil, err
	}
	p, err := l.NewPickerWithSeed(tid, seed)
	if err != nil {
		return nil, err
	}
	simBe, err := sim.mBuf[0].SnapshotCore()
	if err != nil {
		return nil, err
	}
	pBe, err := p.SnapshotCore()
	if err != nil {
		return nil, err
	}
	simBe64 := corefmt.EncodeBase64URL(simBe)
	pBe64 := corefmt.EncodeBase64URL(pBe)
	if pBe64 != simBe64 {
		return nil, errs.NewFatal("seeds are not equal")
	}
	dev := &DevSimulator{
		sim:      sim,
		p:        p,
		before:   pBe,
		before64: pBe64,
	}
	return dev, nil
}
