package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// DrawReport 抽樣實驗統計報告
type DrawReport struct {
	Summary *SummaryReport `json:"Summary"`
	Entries []*EntryReport `json:"Entries"`
	Fit     *FitReport     `json:"Fit,omitzero"`
	isDone  bool
}

type SummaryReport struct {
	TableName   string  `json:"TableName"`
	EntryCount  int     `json:"EntryCount"`
	Draws       int64   `json:"Draws"`
	TotalWeight float64 `json:"TotalWeight"`
	Replacement bool    `json:"Replacement"`
}

// EntryReport 單一母體元素的落點統計
//
// 紀錄時只累加整數計數，避免熱路徑的浮點成本。
// 紀錄完成後 Done() 會將機率與信賴區間整理填入。
type EntryReport struct {
	Label      string  `json:"Label"`
	Weight     float64 `json:"Weight"`
	Expected   float64 `json:"Expected"` // 理論機率 w / total
	Count      int64   `json:"Count"`
	Observed   float64 `json:"Observed"` // 經驗機率 count / draws
	ObservedCI CI      `json:"ObservedCI"`
}

// FitReport 卡方適合度檢定結果
//
// 只對理論機率 > 0 的元素計算；不放回抽樣的落點不符合檢定前提，
// 此欄位僅在放回抽樣的報告中有意義。
type FitReport struct {
	ChiSquare float64 `json:"ChiSquare"`
	Dof       int     `json:"Dof"`
	PValue    float64 `json:"PValue"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 抽樣過程因為性能原因只累加 int64 計數，統計完成後
// 請使用 Done 一次性計算經驗機率、信賴區間與適合度檢定。
func (s *DrawReport) Done() {
	if s.isDone {
		return
	}

	draws := s.Summary.Draws
	for _, e := range s.Entries {
		if s.Summary.TotalWeight > 0 {
			e.Expected = e.Weight / s.Summary.TotalWeight
		}
		if draws > 0 {
			hat, ci := proportionCICP(e.Count, draws, 0.95)
			e.Observed = hat
			e.ObservedCI = ci
		}
	}

	if s.Summary.Replacement && draws > 0 {
		s.Fit = chiSquareGOF(s.Entries, draws)
	}

	s.isDone = true
}

func (s *DrawReport) WriteWith(w io.Writer, rep DrawReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

func (s *DrawReport) StdOut(ut time.Duration) {
	s.Done()
	formatDuration(ut, s.Summary.Draws)
	sk, sm := s.fmtBasic()
	str := fmtTable(s.Summary.TableName, sk, sm)
	fmt.Println(str)
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration, draws int64) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	dps := int(float64(draws) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\ndps : %d draws/sec\n", sec, dps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		s = s % 60
		p.Printf("used: %dm %ds\ndps : %d draws/sec\n", m, s, dps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\ndps : %d draws/sec\n", h, m, s, dps)
}

// StdOut

func (s *DrawReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Table Name":   p.Sprintf("%s", s.Summary.TableName),
		"Entries":      p.Sprintf("%d", s.Summary.EntryCount),
		"Total Draws":  p.Sprintf("%d", s.Summary.Draws),
		"Total Weight": p.Sprintf("%v", s.Summary.TotalWeight),
		"Replacement":  p.Sprintf("%t", s.Summary.Replacement),
	}
	keys := []string{"Table Name", "Entries", "Total Draws", "Total Weight", "Replacement"}

	if s.Fit != nil {
		basic["Chi-Square"] = p.Sprintf("%.3f (dof %d)", s.Fit.ChiSquare, s.Fit.Dof)
		basic["GOF p-value"] = p.Sprintf("%.4f", s.Fit.PValue)
		keys = append(keys, "Chi-Square", "GOF p-value")
	}

	for _, e := range s.Entries {
		k := "· " + e.Label
		basic[k] = p.Sprintf("%.2f%% vs %.2f%% [%.2f%%,%.2f%%]",
			100.0*e.Expected, 100.0*e.Observed, 100.0*e.ObservedCI.Lo, 100.0*e.ObservedCI.Hi)
		keys = append(keys, k)
	}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	fmtStr := top
	fmtStr += p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	fmtStr += divider
	for _, k := range keys {
		fmtStr += p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	fmtStr += divider

	return fmtStr
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
