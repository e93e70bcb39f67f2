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

package dto

import (
	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/corefmt"
	"github.com/zintix-labs/randlab/errs"
)

// DrawResult 為對外輸出的抽樣結果序列化結構。
type DrawResult struct {
	TableName string      `json:"table"`   // 權重表名稱
	TableID   catalog.TID `json:"tid"`     // 權重表編號
	Count     int         `json:"count"`   // 本次抽取數量
	Replace   bool        `json:"replace"` // 是否放回
	Indices   []int       `json:"indices"` // 中選元素在母體中的索引（依抽取順序）
	Labels    []string    `json:"labels"`  // 中選元素的標籤（依抽取順序）
	State     DrawState   `json:"draw_state"`
}

// DrawState 承載本次抽樣前後的 RNG Core 快照。
//
// Start 讓業務端可以回放（replay）同一次抽樣；
// After 作為下一次續抽的 start，以延續 RNG 流水。
type DrawState struct {
	StartCoreSnapB64U string `json:"start_b64u"` // 必回
	AfterCoreSnapB64U string `json:"after_b64u"` // 必回
}

func NewDrawResultDTO(name string, id catalog.TID, replace bool, indices []int, labels []string, startSnap, afterSnap []byte) (DrawResult, error) {
	if len(indices) != len(labels) {
		return DrawResult{}, errs.NewFatal("draw result indices/labels length mismatch")
	}
	return DrawResult{
		TableName: name,
		TableID:   id,
		Count:     len(indices),
		Replace:   replace,
		Indices:   indices,
		Labels:    labels,
		State: DrawState{
			StartCoreSnapB64U: corefmt.EncodeBase64URL(startSnap),
			AfterCoreSnapB64U: corefmt.EncodeBase64URL(afterSnap),
		},
	}, nil
}
