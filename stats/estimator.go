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
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// EstimatorRuns 多次獨立實驗的落點離散程度評估
//
// 給定同一張表的多份獨立報告（例如多 worker 模擬各自的結果），
// 對每個元素描述其經驗機率在各次實驗間的分布。
type EstimatorRuns struct {
	Labels []string
	Spread []SpreadStat
}

// SpreadStat 單一元素的經驗機率分布敘事
type SpreadStat struct {
	Expected float64   // 理論機率
	Median   PointStat // 各次實驗經驗機率的中位數
	P10      PointStat
	P90      PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// ============================================================
// ** 對外 : 多次實驗評估 **
// ============================================================

// EstimatorDrawRuns 彙整多份獨立報告，評估每個元素經驗機率的離散程度。
//
// 報告必須來自同一張表（相同元素數量與順序）；
// 各報告會先各自 Done()，再取其 Observed 值做分位估計。
func EstimatorDrawRuns(reports []*DrawReport) *EstimatorRuns {
	out := &EstimatorRuns{}
	n := len(reports)
	if n == 0 {
		return out
	}
	for _, r := range reports {
		r.Done()
	}

	entries := len(reports[0].Entries)
	out.Labels = make([]string, entries)
	out.Spread = make([]SpreadStat, entries)

	obs := make([]float64, n)
	for ei := 0; ei < entries; ei++ {
		out.Labels[ei] = reports[0].Entries[ei].Label
		for ri, r := range reports {
			obs[ri] = r.Entries[ei].Observed
		}

		medHat := quantilePoint(obs, 0.5)
		medLo, medHi := quantileCI(obs, 0.5, 0.95)
		p10Hat := quantilePoint(obs, 0.10)
		p10Lo, p10Hi := quantileCI(obs, 0.10, 0.95)
		p90Hat := quantilePoint(obs, 0.90)
		p90Lo, p90Hi := quantileCI(obs, 0.90, 0.95)

		out.Spread[ei] = SpreadStat{
			Expected: reports[0].Entries[ei].Expected,
			Median:   PointStat{Hat: medHat, CI: CI{Lo: medLo, Hi: medHi}},
			P10:      PointStat{Hat: p10Hat, CI: CI{Lo: p10Lo, Hi: p10Hi}},
			P90:      PointStat{Hat: p90Hat, CI: CI{Lo: p90Lo, Hi: p90Hi}},
		}
	}
	return out
}

// Out 將跨 run 的經驗機率離散度輸出到 stdout（CLI 模擬器用）。
func (est *EstimatorRuns) Out() {
	fmt.Println("=== Observed probability spread across runs ===")
	for i, label := range est.Labels {
		sp := est.Spread[i]
		keys := []string{"Expected", "Median", "P10", "P90"}
		msg := map[string]string{
			"Expected": fmt.Sprintf("%.4f%%", 100*sp.Expected),
			"Median":   fmtHatCI(sp.Median),
			"P10":      fmtHatCI(sp.P10),
			"P90":      fmtHatCI(sp.P90),
		}
		fmt.Print(fmtTable(label, keys, msg))
		fmt.Println()
	}
}

func fmtHatCI(p PointStat) string {
	return fmt.Sprintf("%.4f%% [%.4f%%, %.4f%%]", 100*p.Hat, 100*p.CI.Lo, 100*p.CI.Hi)
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int64, n int64, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// chiSquareGOF 對放回抽樣的落點做卡方適合度檢定。
//
// 只納入理論機率 > 0 的元素；自由度 = 有效元素數 - 1。
// 有效元素不足 2 個時無法檢定，回傳 nil。
func chiSquareGOF(entries []*EntryReport, draws int64) *FitReport {
	stat := 0.0
	valid := 0
	for _, e := range entries {
		if e.Expected <= 0 {
			continue
		}
		expected := e.Expected * float64(draws)
		diff := float64(e.Count) - expected
		stat += diff * diff / expected
		valid++
	}
	if valid < 2 {
		return nil
	}
	dof := valid - 1
	dist := distuv.ChiSquared{K: float64(dof)}
	return &FitReport{
		ChiSquare: stat,
		Dof:       dof,
		PValue:    dist.Survival(stat),
	}
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}
