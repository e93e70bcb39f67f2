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

// Package randomizer 提供以累積權重表 (cumulative weight table) 為基礎的加權抽樣器。
//
// 本檔案 (choice.go) 定義抽樣母體的基本單元與錯誤值。
//
// 設計目的：
//   - Choice 將「回傳值」與「權重」封裝為一個不可再分的配對，
//     母體即為 []Choice 的有序列表，索引順序具有意義（同權重時索引小者優先）。
//   - Uniform 是等權重母體的便捷建構：所有元素權重為 1。
//
// 權重規則：
//   - 權重必須是有限 (finite) 且非負的數值，負數與 NaN/Inf 一律視為非法。
//   - 權重為 0 的元素合法，但永遠不會被抽中。
//   - 母體的權重總和必須 > 0 才能抽樣。
package randomizer

import (
	"math"

	"github.com/zintix-labs/randlab/errs"
)

// 抽樣錯誤值。皆為 Warn 等級（呼叫端參數問題，而非系統故障），
// 可用 errors.Is 判別。
var (
	// ErrInvalidWeight 表示母體中存在負數或非有限 (NaN/Inf) 的權重，
	// 或權重總和為 0 導致無法抽樣。
	ErrInvalidWeight = errs.NewWarn("randomizer: invalid weight")

	// ErrEmptyPopulation 表示母體為空或權重總和為 0（無可抽元素），無從抽樣。
	ErrEmptyPopulation = errs.NewWarn("randomizer: empty population")

	// ErrInsufficientPopulation 表示不放回抽樣的需求數量
	// 超過母體中權重 > 0 的元素個數。
	ErrInsufficientPopulation = errs.NewWarn("randomizer: insufficient population")
)

// Choice 是加權母體的基本單元：一個回傳值與其權重的配對。
type Choice[T any] struct {
	Value  T
	Weight float64
}

// NewChoice 建立一個 Choice 配對。
func NewChoice[T any](value T, weight float64) Choice[T] {
	return Choice[T]{Value: value, Weight: weight}
}

// Uniform 將一組值轉成等權重母體（每個元素權重為 1）。
//
// 等權重是加權抽樣的特例，不需要獨立的抽樣器型別；
// 轉換後的母體走同一條累積表路徑，語意完全一致。
func Uniform[T any](values []T) []Choice[T] {
	population := make([]Choice[T], len(values))
	for i, v := range values {
		population[i] = Choice[T]{Value: v, Weight: 1}
	}
	return population
}

// validWeight 檢查單一權重是否合法（有限且非負）。
func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 1) && !math.IsNaN(w)
}
