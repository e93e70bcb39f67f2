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

package randomizer

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/zintix-labs/randlab/sdk/core"
)

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// scriptedRNG 依腳本逐一回傳 Float64 值，用於精確控制抽樣路徑。
// 腳本耗盡後回傳 0。
type scriptedRNG struct {
	values []float64
	pos    int
}

func (s *scriptedRNG) Float64() float64 {
	if s.pos >= len(s.values) {
		return 0
	}
	v := s.values[s.pos]
	s.pos++
	return v
}

func (s *scriptedRNG) Uint64() uint64  { return 0 }
func (s *scriptedRNG) UintN(uint) uint { return 0 }
func (s *scriptedRNG) IntN(int) int    { return 0 }

// mustNew 建立 Randomizer，失敗時 Fatal
func mustNew[T any](t *testing.T, rng core.RAND, pop []Choice[T]) *Randomizer[T] {
	t.Helper()
	r, err := New(rng, pop)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func weightedPop(weights []float64) []Choice[int] {
	pop := make([]Choice[int], len(weights))
	for i, w := range weights {
		pop[i] = NewChoice(i, w)
	}
	return pop
}

// checkDistribution 驗證抽樣結果的分佈是否符合預期權重
func checkDistribution(t *testing.T, name string, weights []float64, samples []int, tolerance float64) {
	t.Helper()
	totalW := 0.0
	for _, w := range weights {
		totalW += w
	}

	counts := make(map[int]int)
	for _, idx := range samples {
		counts[idx]++
	}

	totalSamples := len(samples)
	for i, w := range weights {
		if w == 0 {
			if counts[i] > 0 {
				t.Errorf("[%s] expected 0 samples for index %d (weight 0), got %d", name, i, counts[i])
			}
			continue
		}
		expectedProb := w / totalW
		actualProb := float64(counts[i]) / float64(totalSamples)
		diff := math.Abs(expectedProb - actualProb)

		if diff > tolerance {
			t.Errorf("[%s] index %d: expected prob %.3f, got %.3f (diff %.3f > tol %.3f)",
				name, i, expectedProb, actualProb, diff, tolerance)
		}
	}
}

// -----------------------------------------------------------------------------
// Tests for 建構與母體變動
// -----------------------------------------------------------------------------

// TestNewRejectsInvalidWeight 驗證非法權重在建構時即被攔截
// 檢查項目: 負數 / NaN / +Inf 權重均回傳 ErrInvalidWeight
func TestNewRejectsInvalidWeight(t *testing.T) {
	rng := core.Default().New(1)
	for _, w := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := New(rng, []Choice[string]{NewChoice("a", w)})
		if !errors.Is(err, ErrInvalidWeight) {
			t.Errorf("weight %v: expected ErrInvalidWeight, got %v", w, err)
		}
	}
}

// TestMutationRejectsInvalidWeight 驗證各變動入口都攔截非法權重，且母體不受影響
func TestMutationRejectsInvalidWeight(t *testing.T) {
	r := mustNew(t, core.Default().New(1), weightedPop([]float64{1, 2}))

	if err := r.Append(NewChoice(9, -3.0)); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("Append: expected ErrInvalidWeight, got %v", err)
	}
	if err := r.Reweight(0, math.NaN()); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("Reweight: expected ErrInvalidWeight, got %v", err)
	}
	if err := r.SetPopulation(weightedPop([]float64{1, -1})); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("SetPopulation: expected ErrInvalidWeight, got %v", err)
	}

	// 母體必須維持原狀
	if r.Len() != 2 || r.TotalWeight() != 3 {
		t.Errorf("population mutated after rejected operations: len=%d total=%v", r.Len(), r.TotalWeight())
	}
}

// TestRemoveAtAndBounds 驗證 RemoveAt / Reweight 的越界行為
func TestRemoveAtAndBounds(t *testing.T) {
	r := mustNew(t, core.Default().New(1), weightedPop([]float64{1, 2, 3}))

	if err := r.RemoveAt(1); err != nil {
		t.Fatalf("RemoveAt failed: %v", err)
	}
	if r.Len() != 2 || r.TotalWeight() != 4 {
		t.Errorf("after RemoveAt: len=%d total=%v, want len=2 total=4", r.Len(), r.TotalWeight())
	}
	// 後續元素前移
	if got := r.Population(); got[1].Value != 2 {
		t.Errorf("expected value 2 at index 1 after removal, got %v", got[1].Value)
	}

	if err := r.RemoveAt(5); err == nil {
		t.Error("RemoveAt out of range: expected error")
	}
	if err := r.Reweight(-1, 1); err == nil {
		t.Error("Reweight out of range: expected error")
	}
}

// -----------------------------------------------------------------------------
// Tests for 抽樣邊界
// -----------------------------------------------------------------------------

// TestSampleEdgeCounts 驗證 count 的邊界行為
// 檢查項目: count == 0 回傳空結果；count < 0 回傳錯誤
func TestSampleEdgeCounts(t *testing.T) {
	r := mustNew(t, core.Default().New(1), weightedPop([]float64{1, 2}))

	got, err := r.Sample(0, true)
	if err != nil || len(got) != 0 {
		t.Errorf("Sample(0): expected empty result, got %v, err %v", got, err)
	}

	if _, err := r.Sample(-1, true); err == nil {
		t.Error("Sample(-1): expected error")
	}
}

// TestSampleEmptyPopulation 驗證空母體回傳 ErrEmptyPopulation
func TestSampleEmptyPopulation(t *testing.T) {
	r := mustNew(t, core.Default().New(1), []Choice[int]{})
	_, err := r.Sample(1, true)
	if !errors.Is(err, ErrEmptyPopulation) {
		t.Errorf("expected ErrEmptyPopulation, got %v", err)
	}
}

// TestSampleAllZeroWeights 驗證權重總和為 0（無可抽元素）時回傳 ErrEmptyPopulation
func TestSampleAllZeroWeights(t *testing.T) {
	r := mustNew(t, core.Default().New(1), weightedPop([]float64{0, 0, 0}))
	for _, replace := range []bool{true, false} {
		_, err := r.Sample(1, replace)
		if !errors.Is(err, ErrEmptyPopulation) {
			t.Errorf("replace=%v: expected ErrEmptyPopulation, got %v", replace, err)
		}
	}
}

// TestSampleSinglePositive 驗證單一元素母體恆中選
func TestSampleSinglePositive(t *testing.T) {
	r := mustNew(t, core.Default().New(7), []Choice[string]{NewChoice("only", 3.5)})
	got, err := r.Sample(100, true)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	for _, v := range got {
		if v != "only" {
			t.Fatalf("expected only element, got %q", v)
		}
	}
}

// -----------------------------------------------------------------------------
// Tests for 抽樣語意（腳本化 RNG）
// -----------------------------------------------------------------------------

// TestBoundarySelection 驗證「嚴格大於」的區段歸屬
//
// 母體權重 [1,1,1,2]，累積表 [1,2,3,5]，total = 5。
// u 恰等於累積值時必須歸屬下一個元素。
func TestBoundarySelection(t *testing.T) {
	rng := &scriptedRNG{values: []float64{
		0,       // u = 0.0 -> idx 0
		0.2,     // u = 1.0（邊界）-> idx 1
		0.4,     // u = 2.0（邊界）-> idx 2
		0.6,     // u = 3.0（邊界）-> idx 3
		0.59999, // u = 2.99995 -> idx 2
	}}
	r := mustNew(t, rng, weightedPop([]float64{1, 1, 1, 2}))

	got, err := r.SampleIndices(5, true)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	want := []int{0, 1, 2, 3, 2}
	if !slices.Equal(got, want) {
		t.Errorf("boundary selection mismatch: got %v, want %v", got, want)
	}
}

// TestZeroWeightNeverSelected 驗證權重 0 的元素不可能中選
//
// 母體權重 [0,1,0]，累積表 [0,1,1]。u ∈ [0,1) 全部落在 idx 1。
func TestZeroWeightNeverSelected(t *testing.T) {
	rng := &scriptedRNG{values: []float64{0, 0.5, 0.99999}}
	r := mustNew(t, rng, weightedPop([]float64{0, 1, 0}))

	got, err := r.SampleIndices(3, true)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	for _, idx := range got {
		if idx != 1 {
			t.Fatalf("zero-weight element selected: idx %d", idx)
		}
	}

	// 大量隨機抽樣也不應命中權重 0 的元素
	r2 := mustNew(t, core.Default().New(5), weightedPop([]float64{0, 3, 0, 7}))
	samples, err := r2.SampleIndices(20000, true)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	for _, idx := range samples {
		if idx == 0 || idx == 2 {
			t.Fatalf("zero-weight element selected: idx %d", idx)
		}
	}
}

// TestSampleWithoutReplacementScripted 驗證不放回抽樣的增量扣除語意
//
// 母體權重 [2,1,1]，累積表 [2,3,4]。腳本固定給 0：
// 第一抽 u=0 -> idx 0（扣除後 total=2），第二抽 u=0 -> idx 1，第三抽 -> idx 2。
func TestSampleWithoutReplacementScripted(t *testing.T) {
	rng := &scriptedRNG{values: []float64{0, 0, 0}}
	r := mustNew(t, rng, weightedPop([]float64{2, 1, 1}))

	got, err := r.SampleIndices(3, false)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	want := []int{0, 1, 2}
	if !slices.Equal(got, want) {
		t.Errorf("without-replacement order mismatch: got %v, want %v", got, want)
	}

	// 抽樣不得污染母體與後續抽樣
	if r.TotalWeight() != 4 {
		t.Errorf("population polluted: total %v, want 4", r.TotalWeight())
	}
}

// -----------------------------------------------------------------------------
// Tests for 不放回抽樣
// -----------------------------------------------------------------------------

// TestWithoutReplacementPermutation 驗證全抽為索引的排列且不重複
func TestWithoutReplacementPermutation(t *testing.T) {
	n := 6
	r := mustNew(t, core.Default().New(11), weightedPop([]float64{1, 1, 1, 1, 1, 1}))

	got, err := r.SampleIndices(n, false)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	for i := 0; i < n; i++ {
		if sorted[i] != i {
			t.Fatalf("not a permutation: %v", got)
		}
	}
}

// TestWithoutReplacementExhaustion 驗證抽樣數量超過可抽元素時回傳 ErrInsufficientPopulation
func TestWithoutReplacementExhaustion(t *testing.T) {
	r := mustNew(t, core.Default().New(13), weightedPop([]float64{1, 2, 3}))

	if _, err := r.SampleIndices(3, false); err != nil {
		t.Fatalf("exact exhaustion should succeed: %v", err)
	}
	if _, err := r.SampleIndices(4, false); !errors.Is(err, ErrInsufficientPopulation) {
		t.Errorf("expected ErrInsufficientPopulation, got %v", err)
	}

	// 權重 0 的元素不計入可抽數量
	r2 := mustNew(t, core.Default().New(13), weightedPop([]float64{1, 0, 2}))
	if _, err := r2.SampleIndices(3, false); !errors.Is(err, ErrInsufficientPopulation) {
		t.Errorf("zero-weight should not be drawable: got %v", err)
	}
}

// TestWithoutReplacementFractionalExhaustion 驗證小數權重下的不放回抽樣語意
//
// 小數權重經過多次扣除後，浮點殘餘總權重可能仍為正，
// 不能靠殘餘歸零判斷耗盡，否則會把已抽中的元素再抽一次。
func TestWithoutReplacementFractionalExhaustion(t *testing.T) {
	weights := []float64{0.1, 0.2, 0.3}

	// 全抽仍為排列且不重複
	r := mustNew(t, core.Default().New(17), weightedPop(weights))
	got, err := r.SampleIndices(3, false)
	if err != nil {
		t.Fatalf("exact exhaustion should succeed: %v", err)
	}
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []int{0, 1, 2}) {
		t.Errorf("not a permutation: %v", got)
	}

	// n+1 必須失敗，且不得回傳含重複索引的結果。
	// 腳本化 RNG 走到第四抽時殘餘值為正，若靠殘餘歸零判斷會多抽一次。
	rng := &scriptedRNG{values: []float64{0, 0.9, 0.9, 0.5}}
	r2 := mustNew(t, rng, weightedPop(weights))
	if out, err := r2.SampleIndices(4, false); !errors.Is(err, ErrInsufficientPopulation) {
		t.Errorf("expected ErrInsufficientPopulation, got %v (out=%v)", err, out)
	}
}

// -----------------------------------------------------------------------------
// Tests for 快取失效與決定性
// -----------------------------------------------------------------------------

// TestCacheInvalidationOnMutation 驗證母體變動後抽樣立即反映新權重
func TestCacheInvalidationOnMutation(t *testing.T) {
	rng := &scriptedRNG{values: []float64{0.5, 0.5, 0.5}}
	r := mustNew(t, rng, weightedPop([]float64{1, 0}))

	got, _ := r.SampleIndices(1, true)
	if got[0] != 0 {
		t.Fatalf("expected idx 0 before mutation, got %d", got[0])
	}

	// 權重對調後，同一個 u 必須落到另一個元素
	if err := r.Reweight(0, 0); err != nil {
		t.Fatalf("Reweight failed: %v", err)
	}
	if err := r.Reweight(1, 1); err != nil {
		t.Fatalf("Reweight failed: %v", err)
	}
	got, _ = r.SampleIndices(1, true)
	if got[0] != 1 {
		t.Fatalf("cache not invalidated: expected idx 1, got %d", got[0])
	}

	// Append 之後新元素立即可中選
	if err := r.Append(NewChoice(2, 100.0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	got, _ = r.SampleIndices(1, true)
	if got[0] != 2 {
		t.Fatalf("appended element not drawable: got idx %d", got[0])
	}
}

// TestSampleDeterminism 驗證相同 seed 下抽樣序列完全一致
func TestSampleDeterminism(t *testing.T) {
	pop := weightedPop([]float64{1, 2, 3, 4})
	r1 := mustNew(t, core.Default().New(42), pop)
	r2 := mustNew(t, core.Default().New(42), pop)

	a, err := r1.SampleIndices(100, true)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	b, err := r2.SampleIndices(100, true)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	if !slices.Equal(a, b) {
		t.Error("same seed produced different sample sequences")
	}
}

// -----------------------------------------------------------------------------
// Tests for 分佈
// -----------------------------------------------------------------------------

// TestSampleDistribution 驗證大量抽樣的經驗分佈貼近權重比例
// 母體權重 [1,1,1,2]，期望機率 [0.2, 0.2, 0.2, 0.4]
func TestSampleDistribution(t *testing.T) {
	weights := []float64{1, 1, 1, 2}
	r := mustNew(t, core.Default().New(2026), weightedPop(weights))

	samples, err := r.SampleIndices(100000, true)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	checkDistribution(t, "with-replacement", weights, samples, 0.01)
}

// TestUniformDistribution 驗證 Uniform 母體的等機率分佈
func TestUniformDistribution(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e"}
	r := mustNew(t, core.Default().New(3), Uniform(values))

	samples, err := r.SampleIndices(50000, true)
	if err != nil {
		t.Fatalf("SampleIndices failed: %v", err)
	}
	checkDistribution(t, "uniform", []float64{1, 1, 1, 1, 1}, samples, 0.01)
}

// TestSampleValues 驗證 Sample 回傳的是值而非索引
func TestSampleValues(t *testing.T) {
	rng := &scriptedRNG{values: []float64{0, 0.9}}
	pop := []Choice[string]{NewChoice("low", 1.0), NewChoice("high", 1.0)}
	r := mustNew(t, rng, pop)

	got, err := r.Sample(2, true)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if got[0] != "low" || got[1] != "high" {
		t.Errorf("unexpected values: %v", got)
	}
}
