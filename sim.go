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
	"io"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/recorder"
	"github.com/zintix-labs/randlab/sdk/core"
	"github.com/zintix-labs/randlab/stats"
)

const capPrepare int = 100

// Simulator 用於模擬抽樣行為，可建立多台 Picker 並平行紀錄統計。
type Simulator struct {
	TableName string                   // 權重表名稱
	TableId   catalog.TID              // 權重表 ID
	ts        *catalog.TableSetting    // 方便重用建立 Picker / Recorder
	cf        core.PRNGFactory         // 亂數生成器
	initSeed  int64                    // 初始下的種子
	seedmaker *seedMaker               // 種子生成器
	mBuf      []*Picker                // 併發執行抽樣器實例
	rBuf      []*recorder.DrawRecorder // 併發抽樣紀錄員
	sBuf      []*stats.DrawReport      // 併發統計結果報表(僅 Runs 需要)
}

func newSimulator(ts *catalog.TableSetting, cf core.PRNGFactory) (*Simulator, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, cf, seed.Int64())
}

func newSimulatorWithSeed(ts *catalog.TableSetting, cf core.PRNGFactory, seed int64) (*Simulator, error) {
	s := &Simulator{
		TableName: ts.TableName,
		TableId:   ts.TableID,
		ts:        ts,
		cf:        cf,
		initSeed:  seed,
		seedmaker: newSeedMaker(seed),
		mBuf:      make([]*Picker, 1, capPrepare),
		rBuf:      make([]*recorder.DrawRecorder, 0, capPrepare),
		sBuf:      make([]*stats.DrawReport, 0, capPrepare),
	}
	p, err := newPickerWithSeed(ts, cf, s.initSeed)
	if err != nil {
		return nil, err
	}
	s.mBuf[0] = p
	return s, nil
}

// Sim 單線模擬器：以一台 Picker 連續跑指定 round 並回傳統計結果與用時。
//
// batch 是每一輪抽取的元素數量；round 是輪數，總抽取量為 batch*round。
func (s *Simulator) Sim(batch int, round int, withReplacement bool, showpb bool) (*stats.DrawReport, time.Duration, error) {
	defer s.reset()
	if err := s.validParam(batch, round, withReplacement); err != nil {
		return nil, 0, err
	}
	if len(s.rBuf) == 0 {
		r, err := recorder.NewDrawRecorder(s.TableName, s.ts.Labels(), s.ts.Weights(), withReplacement)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	r := s.rBuf[0]
	m := s.mBuf[0]

	bar := pb.StartNew(round)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < round; i++ {
		idx := m.DrawInternal(batch, withReplacement)
		if idx == nil {
			return nil, 0, errs.NewFatal("draw failed during simulation")
		}
		r.Record(idx)
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	result := r.Done()

	return result, used, nil
}

// SimMP 平行執行多台 Picker，總計 batch*rounds*mp 次抽取，合併統計結果後回傳統計結果與用時。
func (s *Simulator) SimMP(batch int, rounds int, mp int, withReplacement bool, showpb bool) (*stats.DrawReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if err := s.validParam(batch, rounds, withReplacement); err != nil {
		return nil, 0, err
	}
	for len(s.mBuf) < mp {
		m, err := newPickerWithSeed(s.ts, s.cf, s.seedmaker.next())
		if err != nil {
			return nil, 0, err
		}
		s.mBuf = append(s.mBuf, m)
	}

	for len(s.rBuf) < mp {
		r, err := recorder.NewDrawRecorder(s.TableName, s.ts.Labels(), s.ts.Weights(), withReplacement)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(rounds * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < mp; i++ {
		go func(i int) {
			defer wg.Done()
			g := s.mBuf[i]
			st := s.rBuf[i]
			for r := 0; r < rounds; r++ {
				idx := g.DrawInternal(batch, withReplacement)
				if idx == nil {
					return
				}
				st.Record(idx)
				bar.Increment()
			}
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	st, err := recorder.MergeDrawRecorder(s.rBuf)
	if err != nil {
		return nil, 0, err
	}
	result := st.Done()

	return result, used, nil
}

// SimRuns 模擬多個獨立 run（每個 run 各自從頭跑 rounds 輪），
// 產出合併基準報表與跨 run 的離散度估計（run 與 run 之間的觀測機率有多散）。
func (s *Simulator) SimRuns(mp int, runs int, batch int, rounds int, withReplacement bool, showpb bool) (*stats.DrawReport, *stats.EstimatorRuns, time.Duration, error) {
	defer s.reset()
	if runs < 1 || mp < 1 {
		return nil, nil, 0, errs.NewWarn("invalid param")
	}
	if err := s.validParam(batch, rounds, withReplacement); err != nil {
		return nil, nil, 0, err
	}

	// 準備並行抽樣器
	for len(s.mBuf) < mp {
		m, err := newPickerWithSeed(s.ts, s.cf, s.seedmaker.next())
		if err != nil {
			return nil, nil, 0, err
		}
		s.mBuf = append(s.mBuf, m)
	}

	// 準備 run（每個 run 一個紀錄員）
	s.sBuf = make([]*stats.DrawReport, runs)
	for len(s.rBuf) < runs {
		r, err := recorder.NewDrawRecorder(s.TableName, s.ts.Labels(), s.ts.Weights(), withReplacement)
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	// 作一個2048大小的緩衝channel 使 run 依序處理
	jobs := make(chan *recorder.DrawRecorder, 2048)

	wg := new(sync.WaitGroup)
	wg.Add(mp) // 併發抽樣器

	bar := pb.StartNew(runs)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	// 併發執行
	for w := 0; w < mp; w++ {
		go sim(wg, s.mBuf[w], jobs, batch, rounds, withReplacement, bar)
	}
	// 此時併發已經啟動，但由於所有 workers 都無法從 jobs 當中取出 j(還沒塞進去) 所以不會結束

	// 塞進 run，開始模擬
	for _, j := range s.rBuf {
		jobs <- j
	}
	close(jobs) // run 送完處理完畢關閉通道 通知所有抽樣器不會再有新資料
	wg.Wait()   // 等待抽樣器都執行完任務
	used := time.Since(bar.StartTime())
	bar.Finish()

	// 合併基準報表
	record, err := recorder.MergeDrawRecorder(s.rBuf)
	if err != nil {
		return nil, nil, 0, err
	}
	st := record.Done()

	// 跨 run 離散度報表
	for i, r := range s.rBuf {
		s.sBuf[i] = r.Done()
	}
	est := stats.EstimatorDrawRuns(s.sBuf)
	return st, est, used, nil
}

func sim(wg *sync.WaitGroup, m *Picker, jobs chan *recorder.DrawRecorder, batch int, rounds int, withReplacement bool, bar *pb.ProgressBar) {
	defer wg.Done()
	for j := range jobs { // j := <- jobs
		for range rounds {
			idx := m.DrawInternal(batch, withReplacement)
			if idx == nil {
				break
			}
			j.Record(idx)
		}
		bar.Increment()
	}
}

func (s *Simulator) validParam(batch int, rounds int, withReplacement bool) error {
	if batch < 1 {
		return errs.NewWarn("batch must > 0")
	}
	if rounds < 1 {
		return errs.NewWarn("round must > 0")
	}
	if !withReplacement && batch > s.mBuf[0].Drawable() {
		return errs.NewWarn("batch exceeds drawable entries for without-replacement run")
	}
	return nil
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// state 走全週期（不重複），再用可逆 mix63 打散
//
// 注意：此方法可能在併發環境下被多 goroutines 同時呼叫（例如 SimMP / SimRuns）。
// 因此 state 的推進必須是原子的：
//   - 使用 CAS（Compare-And-Swap）迴圈確保每次呼叫都會取得唯一的下一個 state。
//   - 回傳值使用推進後的 state 經 mix63 打散後的結果。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()                                            // always masked
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63 // 乘奇數 ⇒ mod 2^63 可逆
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
