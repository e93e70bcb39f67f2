package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/randlab"
	"github.com/zintix-labs/randlab/dto"
	"github.com/zintix-labs/randlab/sdk/core"
	"github.com/zintix-labs/randlab/server/logger"
	"github.com/zintix-labs/randlab/server/svrcfg"
	"github.com/zintix-labs/randlab/stats"
)

var fruitYAML = []byte(`
table_name: fruit
table_id: 1
entries:
  - label: apple
    weight: 1
  - label: banana
    weight: 2
  - label: cherry
    weight: 7
`)

func newTestCfg(t *testing.T) *svrcfg.SvrCfg {
	t.Helper()
	cfgFS := fstest.MapFS{
		"fruit.yaml": &fstest.MapFile{Data: fruitYAML},
	}
	lab, err := randlab.NewAuto(core.Default(), randlab.Configs(cfgFS))
	if err != nil {
		t.Fatalf("NewAuto failed: %v", err)
	}
	sCfg := &svrcfg.SvrCfg{
		Log:         logger.NewDefaultLogger(logger.ModeSilence),
		PoolBufSize: 1,
		Randlab:     lab,
	}
	if err := sCfg.Vaild(); err != nil {
		t.Fatalf("Vaild failed: %v", err)
	}
	return sCfg
}

func TestDrawHandlerGET(t *testing.T) {
	h, err := NewDrawHandler(newTestCfg(t))
	if err != nil {
		t.Fatalf("NewDrawHandler failed: %v", err)
	}

	q := httptest.NewRequest(http.MethodGet, "/v1/draw?table=fruit&tid=1&count=3&replace=true", nil)
	w := httptest.NewRecorder()
	h.Draw(w, q)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var res dto.DrawResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if res.Count != 3 || len(res.Labels) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.State.StartCoreSnapB64U == "" || res.State.AfterCoreSnapB64U == "" {
		t.Error("draw state snapshots missing")
	}
}

func TestDrawHandlerRejectsUnknownTable(t *testing.T) {
	h, err := NewDrawHandler(newTestCfg(t))
	if err != nil {
		t.Fatalf("NewDrawHandler failed: %v", err)
	}

	q := httptest.NewRequest(http.MethodGet, "/v1/draw?table=fruit&tid=42&count=1", nil)
	w := httptest.NewRecorder()
	h.Draw(w, q)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown tid should be 400, got %d", w.Code)
	}
}

func TestDrawHandlerReplay(t *testing.T) {
	h, err := NewDrawHandler(newTestCfg(t))
	if err != nil {
		t.Fatalf("NewDrawHandler failed: %v", err)
	}

	first := httptest.NewRequest(http.MethodGet, "/v1/draw?table=fruit&tid=1&count=5&replace=true", nil)
	w1 := httptest.NewRecorder()
	h.Draw(w1, first)
	var res1 dto.DrawResult
	if err := json.Unmarshal(w1.Body.Bytes(), &res1); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	body := `{"uid":"t","table":"fruit","tid":1,"count":5,"replace":true,` +
		`"start_state":{"start_b64u":"` + res1.State.StartCoreSnapB64U + `"}}`
	replay := httptest.NewRequest(http.MethodPost, "/v1/draw", strings.NewReader(body))
	w2 := httptest.NewRecorder()
	h.Draw(w2, replay)
	if w2.Code != http.StatusOK {
		t.Fatalf("replay status %d: %s", w2.Code, w2.Body.String())
	}
	var res2 dto.DrawResult
	if err := json.Unmarshal(w2.Body.Bytes(), &res2); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for i := range res1.Indices {
		if res1.Indices[i] != res2.Indices[i] {
			t.Fatalf("replay diverged at %d", i)
		}
	}
}

func TestSimHandler(t *testing.T) {
	sCfg := newTestCfg(t)
	sh, err := NewSimHandler(sCfg.Randlab)
	if err != nil {
		t.Fatalf("NewSimHandler failed: %v", err)
	}

	q := httptest.NewRequest(http.MethodGet, "/v1/sim?tid=1&batch=1&round=5000&seed=9", nil)
	w := httptest.NewRecorder()
	sh.Sim(w, q)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Stats *stats.DrawReport `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Stats == nil || resp.Stats.Summary.Draws != 5000 {
		t.Fatalf("unexpected stats: %+v", resp.Stats)
	}
}

func TestSimHandlerRejectsBadRound(t *testing.T) {
	sCfg := newTestCfg(t)
	sh, err := NewSimHandler(sCfg.Randlab)
	if err != nil {
		t.Fatalf("NewSimHandler failed: %v", err)
	}
	q := httptest.NewRequest(http.MethodGet, "/v1/sim?tid=1&batch=1&round=2000000", nil)
	w := httptest.NewRecorder()
	sh.Sim(w, q)
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized round should be 400, got %d", w.Code)
	}
}

func TestSetByJson(t *testing.T) {
	sCfg := newTestCfg(t)
	sh, err := NewSimHandler(sCfg.Randlab)
	if err != nil {
		t.Fatalf("NewSimHandler failed: %v", err)
	}

	body := `{"batch":1,"round":1000,"seed":7,"cfg":{` +
		`"table_name":"fruit","table_id":1,"entries":[` +
		`{"label":"apple","weight":1},{"label":"banana","weight":2},{"label":"cherry","weight":7}]}}`
	q := httptest.NewRequest(http.MethodPost, "/v1/simbycfg", strings.NewReader(body))
	w := httptest.NewRecorder()
	sh.SetByJson(w, q)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var report stats.DrawReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if report.Summary.Draws != 1000 {
		t.Errorf("draws: %d", report.Summary.Draws)
	}
}

func TestStatRebuildsReport(t *testing.T) {
	body := `{"table":"fruit","labels":["a","b"],"weights":[1,1],"replace":true,` +
		`"draws":[[0],[1],[0],[1]]}`
	q := httptest.NewRequest(http.MethodPost, "/v1/stat", strings.NewReader(body))
	w := httptest.NewRecorder()
	Stat(w, q)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var report stats.DrawReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if report.Summary.Draws != 4 {
		t.Errorf("draws: %d", report.Summary.Draws)
	}
}

func TestTables(t *testing.T) {
	sCfg := newTestCfg(t)
	sh, err := NewSimHandler(sCfg.Randlab)
	if err != nil {
		t.Fatalf("NewSimHandler failed: %v", err)
	}
	q := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	w := httptest.NewRecorder()
	sh.Tables(w, q)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var sum []struct {
		Name    string `json:"name"`
		Entries int    `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(sum) != 1 || sum[0].Entries != 3 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}
