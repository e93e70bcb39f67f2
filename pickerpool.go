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
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/dto"
	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/sdk/core"
)

// PickerPool 專門管理「某一張權重表」的所有 Picker 實例。
// 它透過兩個通道管理 Picker 生命週期：
//  1. pool：健康且可用的 Picker，供 Draw() 借出 / 歸還。
//  2. broken：在運作過程中發生錯誤或 panic 的壞 Picker，送往此通道以便後續檢查、維修或丟棄。
//
// 若某台 Picker 於抽樣執行期間發生 panic 或 fatal error，該 Picker 會被送至 broken，並立即補上一台新機以維持容量。
// 整體機制確保整個系統在高併發下仍保持穩定與可用性。
type PickerPool struct {
	tableName     string
	tableId       catalog.TID
	ts            *catalog.TableSetting
	cf            core.PRNGFactory
	initSeed      int64
	seedMaker     *seedMaker
	pool          chan *Picker  // 可用 Picker 的通道，用於取得和歸還
	broken        chan *Picker  // 壞掉 Picker 的通道，用於送修或丟棄
	done          chan struct{} // 關閉訊號：關閉後不再允許借出/歸還/補機
	closeOnce     sync.Once     // 確保 Close() 只執行一次
	poolsize      int           // 好 Picker
	rebuild       atomic.Int32  // 重起 Picker 次數
	inflight      atomic.Int32  // 使用中
	panics        atomic.Int32  // panic 次數
	fatals        atomic.Int32  // fatal 次數（Picker 狀態不可信）
	closeReason   atomic.Value  // string: 關閉原因
	closeInflight atomic.Int32  // 關閉當下 inflight（快照）
	closeAvail    atomic.Int32  // 關閉當下 pool 可用數量（len(pool) 快照）
	closeBroken   atomic.Int32  // 關閉當下 broken backlog（len(broken) 快照）
}

// newPickerPool 建立指定權重表的 Picker 池。
//   - n: Picker 數量（至少為 1）
//
// 初始化內容包含：
//   - 建立 pool（可用）與 broken（壞機）兩個 channel
//   - 預先建立 n 台 Picker 並放入 pool，以便立即提供服務
func newPickerPool(n int, ts *catalog.TableSetting, cf core.PRNGFactory, seed int64) (*PickerPool, error) {
	n = max(1, n) // 確保 Picker 數量至少為1
	p := &PickerPool{
		tableName: ts.TableName,
		tableId:   ts.TableID,
		ts:        ts,
		cf:        cf,
		initSeed:  seed,
		seedMaker: newSeedMaker(seed),
		pool:      make(chan *Picker, n),   // 建立有緩衝的通道，容量為 n
		broken:    make(chan *Picker, 100), // 建立有緩衝的壞機通道，容量固定為100
		done:      make(chan struct{}),
		poolsize:  n,
		inflight:  atomic.Int32{},
		rebuild:   atomic.Int32{},
	}

	p.closeReason.Store("")
	p.closeInflight.Store(-1)
	p.closeAvail.Store(-1)
	p.closeBroken.Store(-1)

	// 上架 Picker，將 n 台放入池中
	for i := 0; i < n; i++ {
		m, err := newPickerWithSeed(ts, cf, p.seedMaker.next())
		if err != nil {
			return nil, err
		}
		p.pool <- m
	}
	return p, nil
}

// Close 進入關閉狀態：
//   - 通知之後所有 Draw() 應該直接回 error
//   - defer 歸還/補機時會觀察 done，避免對已關閉狀態進行 send
func (p *PickerPool) Close() {
	p.closeWithReason("closed")
}

// Closed 回報池是否已進入關閉狀態。
func (p *PickerPool) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// closeWithReason 進入關閉狀態並記錄原因（thread-safe, reason 只會被寫入一次）。
// reason 建議使用固定字串或小枚舉字串，方便 metrics/telemetry 聚合。
func (p *PickerPool) closeWithReason(reason string) {
	p.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		p.closeReason.Store(reason)
		// 進入關閉狀態的瞬間做一次快照，方便外部觀測與故障排查。
		p.closeInflight.Store(p.inflight.Load())
		p.closeAvail.Store(int32(len(p.pool)))
		p.closeBroken.Store(int32(len(p.broken)))
		close(p.done)
	})
}

// isFatalErr 用於判斷本次錯誤是否代表「Picker 狀態不可信」需要淘汰/補機。
//
// 原則：
//   - panic 一律視為 broken（由 caller 端的 defer/recover 處理）
//   - 一般的 request/validation 類錯誤不應淘汰 Picker（例如 BadRequest）
//   - 只有錯誤型別本身明確宣告「fatal」時才視為 broken
func isFatalErr(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*errs.E); ok {
		if e.ErrLv == errs.Fatal {
			return true
		}
	}
	return false
}

func (p *PickerPool) Draw(ctx context.Context, req *dto.DrawRequest) (res dto.DrawResult, err error) {
	var m *Picker
	borrowed := false
	select {
	case <-p.done:
		// 先觀察是否已關閉：關閉直接回失敗，不阻塞
		return res, errs.NewFatal("picker pool closed: " + p.ClosedReason())
	case <-ctx.Done():
		// 如果通知取消
		return res, errs.NewWarn("draw canceled/timeout: " + ctx.Err().Error())
	case m = <-p.pool:
		// 有取出 Picker
		borrowed = true
		p.inflight.Add(1)
		// ok
	}

	// 理論上不會拿到 nil；若發生代表 pool 有嚴重問題。
	if m == nil {
		return res, errs.NewFatal("picker pool got nil picker")
	}

	var isPanic bool

	defer func() {
		if borrowed {
			// 有借有還 再借不難
			p.inflight.Add(-1)
		}
		if r := recover(); r != nil {
			// 系統恢復
			isPanic = true
			p.panics.Add(1)
			err = errs.NewFatal(fmt.Sprintf("picker %s panic : %v", m.tableName, r))
		}

		// 若已關閉，直接丟棄 Picker（不歸還、不補機），避免 send 到已停止的系統。
		if p.Closed() {
			return
		}

		// 若發生 panic 或「致命錯誤」，表示 Picker 狀態不可信，需要送修並補機。
		// 注意：一般的 request/validation error（例如 BadRequest）不應淘汰 Picker。
		if isPanic || isFatalErr(err) {
			if !isPanic && isFatalErr(err) {
				p.fatals.Add(1)
			}
			// 1) 壞 Picker 送入 broken（避免阻塞）
			select {
			case p.broken <- m:
			default:
				// broken 通道滿代表系統可能正在連續故障：進入關閉狀態讓上層接管維護。
				p.closeWithReason("overwhelmed_by_failures")
				// 若外層尚未有錯誤，補一個更明確的致命訊息
				if err == nil {
					err = errs.NewFatal("picker pool overwhelmed by failures")
				}
				return
			}

			// 2) 補一台新 Picker（維持容量）
			newOne, buildErr := newPickerWithSeed(p.ts, p.cf, p.seedMaker.next())
			p.rebuild.Add(1)
			if buildErr != nil {
				err = errs.NewFatal(fmt.Sprintf("picker %s can not build", p.tableName))
				p.closeWithReason("rebuild_failed")
				return
			}

			// 補機前再看一次是否已關閉（避免並行 Close 後 send / block）
			select {
			case <-p.done:
				return
			case p.pool <- newOne:
				// ok
			}

			return
		}

		// 若有錯誤但非致命（多半是 request/validation 類錯誤），Picker 仍然是健康的：歸還 pool 並把 err 原樣回傳。
		// 注意：此處不改寫 err。
		select {
		case <-p.done:
			return
		case p.pool <- m:
			// ok
		}
	}()

	// 執行 Picker 的 Draw 方法
	result, drawErr := m.Draw(req)
	if drawErr != nil {
		err = drawErr
		return
	}

	res = result
	return
}

func (mp *PickerPool) PoolSize() int {
	return mp.poolsize
}

func (mp *PickerPool) Inflight() int {
	return int(mp.inflight.Load())
}

func (mp *PickerPool) ReBuild() int {
	return int(mp.rebuild.Load())
}

func (mp *PickerPool) ClosedReason() string {
	if v := mp.closeReason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (mp *PickerPool) Panics() int {
	return int(mp.panics.Load())
}

func (mp *PickerPool) Fatals() int {
	return int(mp.fatals.Load())
}

// PickerPoolMetrics 是一期提供的「拉取式（pull）」觀測快照。
//
// 設計原則：
//   - 不綁任何 metrics/telemetry SDK（Prometheus / OpenTelemetry 等），由上層自己決定如何輸出。
//   - 欄位值以讀取當下為主；其中 Available/brokenBacklog 來自 len(chan)，在高併發下是「近似值」但足夠用於營運觀測。
//   - 關閉瞬間的快照（CloseInflight/CloseAvail/Closebroken）只會在 Close 時寫入一次，用於事後排查。
type PickerPoolMetrics struct {
	TableName string      `json:"table_name"`
	TableID   catalog.TID `json:"table_id"`

	PoolSize      int    `json:"pool_size"`      // 目標容量（初始化指定）
	Available     int    `json:"available"`      // 當下可借出的 Picker 數（len(pool)）
	Inflight      int    `json:"inflight"`       // 使用中（借出未歸還）
	BrokenBacklog int    `json:"broken_backlog"` // broken channel 當下 backlog（len(broken)）
	Rebuild       int    `json:"rebuild"`        // 補機次數
	Panics        int    `json:"panics"`         // panic 次數
	Fatals        int    `json:"fatals"`         // fatal 次數
	Closed        bool   `json:"closed"`         // 是否已關閉
	CloseReason   string `json:"close_reason"`   // 關閉原因

	CloseInflight int `json:"close_inflight"` // Close() 當下 inflight（-1 表示尚未關閉）
	CloseAvail    int `json:"close_avail"`    // Close() 當下 available（-1 表示尚未關閉）
	Closebroken   int `json:"close_broken"`   // Close() 當下 broken backlog（-1 表示尚未關閉）
}

// Metrics 回傳一期的觀測快照；上層可用於 log、/metrics、或餵給 Prometheus/OTEL exporter。
func (mp *PickerPool) Metrics() PickerPoolMetrics {
	closed := mp.Closed()
	m := PickerPoolMetrics{
		TableName:     mp.tableName,
		TableID:       mp.tableId,
		PoolSize:      mp.poolsize,
		Available:     len(mp.pool),
		Inflight:      int(mp.inflight.Load()),
		BrokenBacklog: len(mp.broken),
		Rebuild:       int(mp.rebuild.Load()),
		Panics:        int(mp.panics.Load()),
		Fatals:        int(mp.fatals.Load()),
		Closed:        closed,
		CloseReason:   mp.ClosedReason(),
		CloseInflight: int(mp.closeInflight.Load()),
		CloseAvail:    int(mp.closeAvail.Load()),
		Closebroken:   int(mp.closeBroken.Load()),
	}
	return m
}

// Available 回傳當下 pool 可用 Picker 數（len(pool)）。在高併發下為近似值。
func (mp *PickerPool) Available() int {
	return len(mp.pool)
}
