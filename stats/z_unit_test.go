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

package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func sampleReport() *DrawReport {
	return &DrawReport{
		Summary: &SummaryReport{
			TableName:   "demo",
			EntryCount:  3,
			Draws:       1000,
			TotalWeight: 10,
			Replacement: true,
		},
		Entries: []*EntryReport{
			{Label: "a", Weight: 2, Count: 200},
			{Label: "b", Weight: 3, Count: 300},
			{Label: "c", Weight: 5, Count: 500},
		},
	}
}

// TestDoneFillsDerivedStats 驗證 Done 會填入理論機率、經驗機率與信賴區間
func TestDoneFillsDerivedStats(t *testing.T) {
	r := sampleReport()
	r.Done()

	wantExpected := []float64{0.2, 0.3, 0.5}
	for i, e := range r.Entries {
		if math.Abs(e.Expected-wantExpected[i]) > 1e-12 {
			t.Errorf("entry %d: expected prob %v, got %v", i, wantExpected[i], e.Expected)
		}
		if math.Abs(e.Observed-wantExpected[i]) > 1e-12 {
			t.Errorf("entry %d: observed prob %v, got %v", i, wantExpected[i], e.Observed)
		}
		if e.ObservedCI.Lo > e.Observed || e.ObservedCI.Hi < e.Observed {
			t.Errorf("entry %d: CI [%v,%v] does not contain %v", i, e.ObservedCI.Lo, e.ObservedCI.Hi, e.Observed)
		}
	}
}

// TestDoneIsIdempotent 驗證重複 Done 不會重算
func TestDoneIsIdempotent(t *testing.T) {
	r := sampleReport()
	r.Done()
	first := r.Entries[0].ObservedCI
	r.Summary.Draws = 1 // Done 之後的竄改不應影響已鎖定的結果
	r.Done()
	if r.Entries[0].ObservedCI != first {
		t.Error("Done recomputed after lock")
	}
}

// TestChiSquareGOF 驗證卡方檢定：完美符合時 p-value 為 1
func TestChiSquareGOF(t *testing.T) {
	r := sampleReport()
	r.Done()
	if r.Fit == nil {
		t.Fatal("expected Fit report for with-replacement draws")
	}
	if r.Fit.Dof != 2 {
		t.Errorf("dof: got %d, want 2", r.Fit.Dof)
	}
	if r.Fit.ChiSquare != 0 {
		t.Errorf("chi-square for perfect counts: got %v, want 0", r.Fit.ChiSquare)
	}
	if math.Abs(r.Fit.PValue-1.0) > 1e-9 {
		t.Errorf("p-value for perfect counts: got %v, want 1", r.Fit.PValue)
	}
}

// TestChiSquareSkipsZeroExpected 驗證理論機率 0 的元素不納入檢定
func TestChiSquareSkipsZeroExpected(t *testing.T) {
	r := sampleReport()
	r.Entries = append(r.Entries, &EntryReport{Label: "never", Weight: 0, Count: 0})
	r.Summary.EntryCount = 4
	r.Done()
	if r.Fit == nil || r.Fit.Dof != 2 {
		t.Fatalf("zero-expected entry should be excluded, got %+v", r.Fit)
	}
}

// TestProportionCICPBounds 驗證 CP 區間的邊界行為
func TestProportionCICPBounds(t *testing.T) {
	hat, ci := proportionCICP(0, 100, 0.95)
	if hat != 0 || ci.Lo != 0 {
		t.Errorf("k=0: hat=%v ci=%+v", hat, ci)
	}
	hat, ci = proportionCICP(100, 100, 0.95)
	if hat != 1 || ci.Hi != 1 {
		t.Errorf("k=n: hat=%v ci=%+v", hat, ci)
	}
	_, ci = proportionCICP(50, 100, 0.95)
	if ci.Lo >= 0.5 || ci.Hi <= 0.5 {
		t.Errorf("k=n/2: CI [%v,%v] should straddle 0.5", ci.Lo, ci.Hi)
	}
}

// TestRenders 驗證 JSON / YAML 渲染可輸出且包含表名
func TestRenders(t *testing.T) {
	r := sampleReport()

	var jb bytes.Buffer
	if err := r.WriteWith(&jb, &JsonDrawReportRender{}); err != nil {
		t.Fatalf("json render failed: %v", err)
	}
	var back DrawReport
	if err := json.Unmarshal(jb.Bytes(), &back); err != nil {
		t.Fatalf("json output not parseable: %v", err)
	}
	if back.Summary.TableName != "demo" {
		t.Errorf("table name lost in json render: %+v", back.Summary)
	}

	var yb bytes.Buffer
	if err := r.WriteWith(&yb, &YAMLDrawReportRender{}); err != nil {
		t.Fatalf("yaml render failed: %v", err)
	}
	if !strings.Contains(yb.String(), "demo") {
		t.Error("table name missing in yaml render")
	}
}

// TestEstimatorDrawRuns 驗證多次實驗評估的分位統計
func TestEstimatorDrawRuns(t *testing.T) {
	mk := func(count int64) *DrawReport {
		return &DrawReport{
			Summary: &SummaryReport{TableName: "demo", EntryCount: 2, Draws: 1000, TotalWeight: 2, Replacement: true},
			Entries: []*EntryReport{
				{Label: "a", Weight: 1, Count: count},
				{Label: "b", Weight: 1, Count: 1000 - count},
			},
		}
	}
	runs := []*DrawReport{mk(480), mk(500), mk(520), mk(495), mk(505)}

	est := EstimatorDrawRuns(runs)
	if len(est.Spread) != 2 {
		t.Fatalf("expected 2 spread entries, got %d", len(est.Spread))
	}
	med := est.Spread[0].Median.Hat
	if med < 0.48 || med > 0.52 {
		t.Errorf("median out of range: %v", med)
	}
	if est.Spread[0].Expected != 0.5 {
		t.Errorf("expected prob: got %v, want 0.5", est.Spread[0].Expected)
	}

	if out := EstimatorDrawRuns(nil); len(out.Spread) != 0 {
		t.Error("empty input should produce empty estimator")
	}
}
