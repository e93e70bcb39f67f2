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

// Package core 定義 Randlab 的亂數核心抽象（PRNG）與其包裝（Core）。
//
// 設計重點：
//   - 亂數來源一律「注入」：Randomizer、Picker、Simulator 都不持有隱藏的全域 RNG。
//     這是可重現（reproducible）與可審計（auditable）的基礎。
//   - PRNG 合約同時要求取樣能力（RAND）與狀態保存/還原（Restorable）。
//     Snapshot/Restore 以 []byte 交換狀態，讓上層能在任意抽樣節點重現後續序列。
package core

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// 為什麼要求 4 個方法（Uint64 / Float64 / UintN / IntN）而不是只要求 Uint64？
//   - 不同 PRNG 的原生輸出寬度不同（32-bit vs 64-bit），bounded 生成各有最快路徑；
//     把 UintN/IntN 交由實作自行提供，避免全部被迫走「先取 uint64 再裁切」的慢路徑。
//   - Float64 的精度（32-bit vs 53-bit mantissa）與生成方式也應由實作決定。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

// PRNGFactory 以 seed 建立 PRNG。
//
// 合約（很重要）：同一實作、同一版本下，New(seed) 必須是決定性的——
// 相同 seed 必須產生相同的初始內部狀態與輸出序列。
//
// seed 的生命週期由上層（Lab / Simulator）統一管理：外部未提供時由上層產生
// 並保存 baseSeed，所有 Picker / 併發模擬的子 seed 皆由 baseSeed 以固定算法派生。
type PRNGFactory interface {
	New(int64) PRNG
}

// DefaultPRNG 實作預設的 PRNGFactory（PCG64）。
type DefaultPRNG struct{}

// New 滿足 PRNGFactory 合約。
func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// Core 封裝 PRNG，並提供常用取樣與工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Pick 從列表中隨機選取一個元素，若列表為空回傳 -1。
// 熱路徑中只使用哨兵值回傳。
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	idx := c.IntN(len(src))
	return src[idx]
}

// ShuffleInts 使用 Fisher-Yates 演算法對 []int 就地隨機重排。
//
// 時間 O(N)、空間 O(1)，且所有 N! 種排列機率嚴格相等。
func (c *Core) ShuffleInts(src []int) {
	if len(src) <= 1 {
		return
	}

	for i := len(src) - 1; i > 0; i-- {
		j := c.IntN(i + 1)
		src[i], src[j] = src[j], src[i]
	}
}
