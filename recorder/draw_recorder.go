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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/stats"
)

// DrawRecorder 抽樣紀錄員
//
// DrawRecorder 負責累加抽樣落點計數，並透過 Done 輸出統計報表。
// 熱路徑只做整數累加；機率、信賴區間與檢定一律延後到 Done。
type DrawRecorder struct {
	TableName   string
	Labels      []string
	Weights     []float64
	Replacement bool
	Counts      []int64
	Draws       int64
}

func NewDrawRecorder(name string, labels []string, weights []float64, replacement bool) (*DrawRecorder, error) {
	s := new(DrawRecorder)

	if len(labels) == 0 {
		return s, errs.NewFatal("draw recorder: empty labels")
	}
	if len(labels) != len(weights) {
		return s, errs.NewFatal(fmt.Sprintf("draw recorder: labels/weights length mismatch %d vs %d", len(labels), len(weights)))
	}
	for i, w := range weights {
		if w < 0 || w != w {
			return s, errs.NewFatal(fmt.Sprintf("draw recorder: invalid weight %v at index %d", w, i))
		}
	}
	// 通過valid
	s.TableName = name
	s.Labels = labels
	s.Weights = weights
	s.Replacement = replacement
	s.Counts = make([]int64, len(labels))

	return s, nil
}

// MergeDrawRecorder 合併多個同表的紀錄員（多 worker 模擬彙整用）。
func MergeDrawRecorder(r []*DrawRecorder) (*DrawRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge draw record err : empty input")
	}
	r0 := r[0]
	s, err := NewDrawRecorder(r0.TableName, r0.Labels, r0.Weights, r0.Replacement)
	if err != nil {
		return s, err
	}
	for _, v := range r {
		if v.TableName != r0.TableName {
			return s, errs.NewFatal("merge draw record err : different table name")
		}
		if v.Replacement != r0.Replacement {
			return s, errs.NewFatal("merge draw record err : different replacement mode")
		}
		if len(v.Counts) != len(r0.Counts) {
			return s, errs.NewFatal("merge draw record err : different entry count")
		}
		for i, w := range v.Weights {
			if w != r0.Weights[i] {
				return s, errs.NewFatal("merge draw record err : different weights")
			}
		}
		for i, c := range v.Counts {
			s.Counts[i] += c
		}
		s.Draws += v.Draws
	}
	return s, nil
}

// Record 以一批中選索引更新計數。
// 索引必須來自對應同一張表的抽樣器；越界視為程式錯誤，直接 panic。
func (s *DrawRecorder) Record(indices []int) {
	for _, idx := range indices {
		s.Counts[idx]++
	}
	s.Draws += int64(len(indices))
}

// RecordOne 記錄單次中選索引。
func (s *DrawRecorder) RecordOne(idx int) {
	s.Counts[idx]++
	s.Draws++
}

func (s *DrawRecorder) Done() *stats.DrawReport {
	totalW := 0.0
	for _, w := range s.Weights {
		totalW += w
	}

	entries := make([]*stats.EntryReport, len(s.Labels))
	for i, label := range s.Labels {
		entries[i] = &stats.EntryReport{
			Label:  label,
			Weight: s.Weights[i],
			Count:  s.Counts[i],
		}
	}

	report := &stats.DrawReport{
		Summary: &stats.SummaryReport{
			TableName:   s.TableName,
			EntryCount:  len(s.Labels),
			Draws:       s.Draws,
			TotalWeight: totalW,
			Replacement: s.Replacement,
		},
		Entries: entries,
	}
	report.Done()
	return report
}
