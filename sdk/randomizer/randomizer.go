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

// Package randomizer 提供以累積權重表為基礎的加權抽樣器。
//
// 本檔案 (randomizer.go) 實作 Randomizer 本體。
//
// 演算法原理：
//   - 建表：將權重 [w0, w1, ..., wn-1] 展開為前綴和 [w0, w0+w1, ..., total]。
//     建表 O(N)，且為惰性：只在第一次抽樣時建立，母體變動時整張丟棄。
//   - 抽樣：取 u = rng.Float64() * total ∈ [0, total)，
//     以二分搜尋找出第一個「cum[i] 嚴格大於 u」的索引 i，即為中選元素。
//     抽樣 O(log N)。
//
// 「嚴格大於」的判準保證了兩件事：
//  1. 權重為 0 的元素永遠不會中選——它的累積值與前一個元素相同，
//     任何 u 命中該區段時都會落到下一個權重 > 0 的元素。
//  2. 區段邊界（u 恰等於某個累積值）歸屬於下一個元素，
//     每個元素的中選機率嚴格等於 w_i / total。
//
// 不放回抽樣：
//   - 對累積表做一份呼叫區域的複本，每抽中索引 i 就把 i 之後（含 i）的
//     累積值全部減去 w_i。中選元素的區段寬度歸零，之後不可能再中選。
//   - 母體本身不會被修改；快取的累積表也不會被污染。
//   - 每次抽取的增量成本為 O(N)（複本更新），k 次抽取為 O(k·N)。
//
// 併發：Randomizer 非併發安全。多 goroutine 共用時由呼叫端自行加鎖，
// 或使用上層的 Picker（序列化擁有者）。
package randomizer

import (
	"fmt"
	"slices"
	"sort"

	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/sdk/core"
)

// Randomizer 是加權抽樣器：持有母體與惰性建立的累積權重表。
//
// 不變量：
//   - 快取存在 ⇒ 快取有效。任何母體變動（SetPopulation / Append /
//     RemoveAt / Reweight）都會無條件丟棄快取，下次抽樣時重建。
//   - population 中的權重恆為合法值（有限且非負）；非法權重在變動入口被攔截。
type Randomizer[T any] struct {
	rng        core.RAND
	population []Choice[T]
	cum        []float64 // 惰性快取的累積權重表；nil 表示尚未建立
}

// New 以注入的亂數來源與初始母體建立 Randomizer。
//
// population 可為空（之後再以 Append / SetPopulation 填入）；
// 含有非法權重時回傳 ErrInvalidWeight。
// 傳入的 slice 會被複製，呼叫端後續修改原 slice 不影響抽樣器。
func New[T any](rng core.RAND, population []Choice[T]) (*Randomizer[T], error) {
	r := &Randomizer[T]{rng: rng}
	if err := r.SetPopulation(population); err != nil {
		return nil, err
	}
	return r, nil
}

//---------------------------------------
// 母體存取
//---------------------------------------

// Len 回傳母體元素個數。
func (r *Randomizer[T]) Len() int {
	return len(r.population)
}

// Population 回傳母體的複本。
func (r *Randomizer[T]) Population() []Choice[T] {
	return slices.Clone(r.population)
}

// TotalWeight 回傳母體權重總和。空母體回傳 0。
func (r *Randomizer[T]) TotalWeight() float64 {
	if len(r.population) == 0 {
		return 0
	}
	r.ensureCum()
	return r.cum[len(r.cum)-1]
}

//---------------------------------------
// 母體變動（一律丟棄快取）
//---------------------------------------

// SetPopulation 以新母體整批取代現有母體。
// 含非法權重時回傳 ErrInvalidWeight，且母體維持原狀（全有或全無）。
func (r *Randomizer[T]) SetPopulation(population []Choice[T]) error {
	for i, c := range population {
		if !validWeight(c.Weight) {
			return errs.WrapWithExtra(ErrInvalidWeight,
				"set population rejected", weightExtra(i, c.Weight))
		}
	}
	r.population = slices.Clone(population)
	r.invalidate()
	return nil
}

// Append 在母體尾端加入一個元素。
func (r *Randomizer[T]) Append(c Choice[T]) error {
	if !validWeight(c.Weight) {
		return errs.WrapWithExtra(ErrInvalidWeight,
			"append rejected", weightExtra(len(r.population), c.Weight))
	}
	r.population = append(r.population, c)
	r.invalidate()
	return nil
}

// RemoveAt 移除索引 idx 的元素，後續元素前移。
// idx 超出範圍時回傳 Warn 錯誤。
func (r *Randomizer[T]) RemoveAt(idx int) error {
	if idx < 0 || idx >= len(r.population) {
		return errs.Warnf("randomizer: remove index %d out of range [0,%d)", idx, len(r.population))
	}
	r.population = slices.Delete(r.population, idx, idx+1)
	r.invalidate()
	return nil
}

// Reweight 更新索引 idx 元素的權重。
func (r *Randomizer[T]) Reweight(idx int, weight float64) error {
	if idx < 0 || idx >= len(r.population) {
		return errs.Warnf("randomizer: reweight index %d out of range [0,%d)", idx, len(r.population))
	}
	if !validWeight(weight) {
		return errs.WrapWithExtra(ErrInvalidWeight, "reweight rejected", weightExtra(idx, weight))
	}
	r.population[idx].Weight = weight
	r.invalidate()
	return nil
}

//---------------------------------------
// 抽樣
//---------------------------------------

// Sample 抽取 count 個元素的值。
//
// withReplacement 為 true 時為放回抽樣：各次抽取獨立同分佈，元素可重複中選。
// 為 false 時為不放回抽樣：同一元素（以索引計）至多中選一次，
// count 超過權重 > 0 的元素個數時回傳 ErrInsufficientPopulation。
//
// 邊界行為：
//   - count == 0：回傳空 slice 與 nil error。
//   - count < 0：回傳 Warn 錯誤。
//   - 空母體或權重總和為 0（無可抽元素）：回傳 ErrEmptyPopulation。
func (r *Randomizer[T]) Sample(count int, withReplacement bool) ([]T, error) {
	indices, err := r.SampleIndices(count, withReplacement)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = r.population[idx].Value
	}
	return out, nil
}

// SampleIndices 與 Sample 相同，但回傳中選元素在母體中的索引。
// 需要同時取得值與權重、或需要對中選結果做後續統計時使用。
func (r *Randomizer[T]) SampleIndices(count int, withReplacement bool) ([]int, error) {
	if count < 0 {
		return nil, errs.Warnf("randomizer: negative sample count %d", count)
	}
	if count == 0 {
		return []int{}, nil
	}
	if len(r.population) == 0 {
		return nil, errs.Wrap(ErrEmptyPopulation, "sample failed")
	}

	r.ensureCum()
	total := r.cum[len(r.cum)-1]
	if total <= 0 {
		// 權重全為 0 視同無可抽元素
		return nil, errs.Wrap(ErrEmptyPopulation, "sample failed: total weight is zero")
	}

	if withReplacement {
		return r.sampleWith(count, total), nil
	}

	// 不放回抽樣的前置檢查：需求量不得超過權重 > 0 的元素個數。
	// 必須在抽樣前以「個數」檢查，不能靠浮點殘餘權重歸零來判斷——
	// 小數權重經過多次扣除後殘餘值可能仍為正，會把已抽中的元素再抽一次。
	if drawable := r.drawableCount(); count > drawable {
		return nil, errs.WrapWithExtra(ErrInsufficientPopulation,
			"sample without replacement failed", insufficientExtra(count, drawable))
	}
	return r.sampleWithout(count), nil
}

//---------------------------------------
// 內部方法
//---------------------------------------

// invalidate 丟棄累積表快取。所有母體變動的出口都必須經過這裡。
func (r *Randomizer[T]) invalidate() {
	r.cum = nil
}

// ensureCum 確保累積表已建立。建表 O(N)。
func (r *Randomizer[T]) ensureCum() {
	if r.cum != nil {
		return
	}
	cum := make([]float64, len(r.population))
	acc := 0.0
	for i, c := range r.population {
		acc += c.Weight
		cum[i] = acc
	}
	r.cum = cum
}

// searchCum 在累積表中找出第一個「嚴格大於 u」的索引。
//
// u ∈ [0, total) 時必有解；浮點累加的極端捨入下若搜不到（idx == n），
// 夾回最後一個索引，避免越界。
func searchCum(cum []float64, u float64) int {
	idx := sort.Search(len(cum), func(i int) bool { return cum[i] > u })
	if idx == len(cum) {
		idx = len(cum) - 1
	}
	return idx
}

// sampleWith 放回抽樣：每次獨立對同一張累積表做二分搜尋，O(count·log N)。
func (r *Randomizer[T]) sampleWith(count int, total float64) []int {
	out := make([]int, count)
	for i := range out {
		u := r.rng.Float64() * total
		out[i] = searchCum(r.cum, u)
	}
	return out
}

// sampleWithout 不放回抽樣。呼叫端已保證 count 不超過可抽元素個數。
//
// 對累積表做呼叫區域複本，每抽中索引 idx 就把 idx 起（含）的累積值
// 全部減去該元素的權重，讓其區段寬度歸零。快取與母體皆不受影響。
//
// 每輪以 work 尾端的殘餘總權重取 u，而非另行追蹤遞減的 total：
// u 恆小於殘餘總權重，sort.Search 必定落在區段寬度 > 0（未抽過）的索引，
// 不會因浮點漂移把已抽中的元素再抽一次。
func (r *Randomizer[T]) sampleWithout(count int) []int {
	work := slices.Clone(r.cum)
	out := make([]int, 0, count)

	for len(out) < count {
		total := work[len(work)-1]
		u := r.rng.Float64() * total
		idx := searchCum(work, u)

		w := work[idx]
		if idx > 0 {
			w -= work[idx-1]
		}
		for i := idx; i < len(work); i++ {
			work[i] -= w
		}

		out = append(out, idx)
	}
	return out
}

// drawableCount 回傳權重 > 0 的元素個數，即不放回抽樣的可抽上限。
func (r *Randomizer[T]) drawableCount() int {
	n := 0
	for _, c := range r.population {
		if c.Weight > 0 {
			n++
		}
	}
	return n
}

func weightExtra(idx int, w float64) string {
	return fmt.Sprintf("index=%d weight=%v", idx, w)
}

func insufficientExtra(want, got int) string {
	return fmt.Sprintf("requested=%d drawable=%d", want, got)
}
