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

package randlab

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/dto"
	"github.com/zintix-labs/randlab/sdk/core"
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

var coinJSON = []byte(`{
  "table_name": "coin",
  "table_id": 2,
  "entries": [
    {"label": "heads", "weight": 1},
    {"label": "tails", "weight": 1}
  ]
}`)

func labFS() fstest.MapFS {
	return fstest.MapFS{
		"fruit.yaml": &fstest.MapFile{Data: fruitYAML},
		"coin.json":  &fstest.MapFile{Data: coinJSON},
	}
}

func newTestLab(t *testing.T) *Lab {
	t.Helper()
	lab, err := NewAuto(core.Default(), Configs(labFS()))
	if err != nil {
		t.Fatalf("NewAuto failed: %v", err)
	}
	return lab
}

func TestNewAutoRegistersAll(t *testing.T) {
	lab := newTestLab(t)

	ids := lab.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if _, ok := lab.EntryByName("fruit"); !ok {
		t.Error("fruit entry missing")
	}
	sum, err := lab.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(sum) != 2 || sum[0].Entries != 3 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestNewRequiresFoundation(t *testing.T) {
	if _, err := New(nil, Configs(labFS())); err == nil {
		t.Error("nil factory should fail")
	}
	if _, err := New(core.Default(), nil); err == nil {
		t.Error("empty configs should fail")
	}
}

func TestRegisterAllRejectsDuplicateID(t *testing.T) {
	dup := fstest.MapFS{
		"a.yaml": &fstest.MapFile{Data: fruitYAML},
		"b.yaml": &fstest.MapFile{Data: []byte("table_name: other\ntable_id: 1\nentries:\n  - label: x\n    weight: 1\n")},
	}
	if _, err := NewAuto(core.Default(), Configs(dup)); err == nil {
		t.Error("duplicate table id across configs should fail")
	}
}

func TestPickerRequiresFrozenCatalog(t *testing.T) {
	lab, err := New(core.Default(), Configs(labFS()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := lab.RegisterAll(); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	if _, err := lab.NewPicker(1); err == nil {
		t.Error("picker before freeze should fail")
	}
	lab.Freeze()
	if _, err := lab.NewPicker(1); err != nil {
		t.Errorf("picker after freeze failed: %v", err)
	}
}

func TestPickerDeterminism(t *testing.T) {
	lab := newTestLab(t)

	p1, err := lab.NewPickerWithSeed(1, 42)
	if err != nil {
		t.Fatalf("NewPickerWithSeed failed: %v", err)
	}
	p2, err := lab.NewPickerWithSeed(1, 42)
	if err != nil {
		t.Fatalf("NewPickerWithSeed failed: %v", err)
	}

	a := p1.DrawInternal(100, true)
	b := p2.DrawInternal(100, true)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("draw %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestPickerDrawAndReplay(t *testing.T) {
	lab := newTestLab(t)
	p, err := lab.NewPickerWithSeed(1, 7)
	if err != nil {
		t.Fatalf("NewPickerWithSeed failed: %v", err)
	}

	req := &dto.DrawRequest{TableName: "fruit", TableId: 1, Count: 5, Replace: true}
	res, err := p.Draw(req)
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if res.Count != 5 || len(res.Indices) != 5 || len(res.Labels) != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// 以 start 快照回放，必須得到一模一樣的結果
	replay := &dto.DrawRequest{
		TableName: "fruit", TableId: 1, Count: 5, Replace: true,
		StartState: &dto.StartState{StartCoreSnapB64U: res.State.StartCoreSnapB64U},
	}
	res2, err := p.Draw(replay)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	for i := range res.Indices {
		if res.Indices[i] != res2.Indices[i] {
			t.Fatalf("replay diverged at %d: %d vs %d", i, res.Indices[i], res2.Indices[i])
		}
	}
	if res.State.AfterCoreSnapB64U != res2.State.AfterCoreSnapB64U {
		t.Error("replay after-snapshot should match original")
	}
}

func TestPickerDrawValidation(t *testing.T) {
	lab := newTestLab(t)
	p, err := lab.NewPickerWithSeed(1, 7)
	if err != nil {
		t.Fatalf("NewPickerWithSeed failed: %v", err)
	}

	bad := []*dto.DrawRequest{
		{TableName: "fruit", TableId: 99, Count: 1, Replace: true},
		{TableName: "nope", TableId: 1, Count: 1, Replace: true},
		{TableName: "fruit", TableId: 1, Count: -1, Replace: true},
		{TableName: "fruit", TableId: 1, Count: 4, Replace: false}, // 超過可抽元素數
	}
	for i, req := range bad {
		if _, err := p.Draw(req); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestPickerWithoutReplacementUnique(t *testing.T) {
	lab := newTestLab(t)
	p, err := lab.NewPickerWithSeed(1, 3)
	if err != nil {
		t.Fatalf("NewPickerWithSeed failed: %v", err)
	}

	req := &dto.DrawRequest{TableName: "fruit", TableId: 1, Count: 3, Replace: false}
	res, err := p.Draw(req)
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	seen := map[int]bool{}
	for _, idx := range res.Indices {
		if seen[idx] {
			t.Fatalf("index %d drawn twice: %v", idx, res.Indices)
		}
		seen[idx] = true
	}
}

func TestPickerReweight(t *testing.T) {
	lab := newTestLab(t)
	p, err := lab.NewPickerWithSeed(1, 3)
	if err != nil {
		t.Fatalf("NewPickerWithSeed failed: %v", err)
	}
	if p.Drawable() != 3 {
		t.Fatalf("drawable: %d", p.Drawable())
	}
	if err := p.Reweight(0, 0); err != nil {
		t.Fatalf("Reweight failed: %v", err)
	}
	if p.Drawable() != 2 {
		t.Errorf("drawable after zeroing: %d", p.Drawable())
	}
	// 權重歸零後該索引不可再中選
	for i := 0; i < 200; i++ {
		idx := p.DrawInternal(1, true)
		if idx[0] == 0 {
			t.Fatal("zero-weight entry selected")
		}
	}
	if err := p.Reweight(0, -1); err == nil {
		t.Error("negative weight should fail")
	}
}

func TestSimulatorSim(t *testing.T) {
	lab := newTestLab(t)
	sim, err := lab.NewSimulatorWithSeed(1, 99)
	if err != nil {
		t.Fatalf("NewSimulatorWithSeed failed: %v", err)
	}

	report, _, err := sim.Sim(1, 10_000, true, false)
	if err != nil {
		t.Fatalf("Sim failed: %v", err)
	}
	if report.Summary.Draws != 10_000 {
		t.Errorf("draws: %d", report.Summary.Draws)
	}
	// cherry 權重 7/10，觀測機率應該落在附近
	obs := report.Entries[2].Observed
	if obs < 0.65 || obs > 0.75 {
		t.Errorf("cherry observed %v, want ~0.7", obs)
	}
	if report.Fit == nil {
		t.Error("fit report missing for with-replacement run")
	}
}

func TestSimulatorSimMP(t *testing.T) {
	lab := newTestLab(t)
	sim, err := lab.NewSimulatorWithSeed(2, 5)
	if err != nil {
		t.Fatalf("NewSimulatorWithSeed failed: %v", err)
	}

	report, _, err := sim.SimMP(2, 2_000, 4, true, false)
	if err != nil {
		t.Fatalf("SimMP failed: %v", err)
	}
	if report.Summary.Draws != 2*2_000*4 {
		t.Errorf("draws: %d", report.Summary.Draws)
	}
	obs := report.Entries[0].Observed
	if obs < 0.45 || obs > 0.55 {
		t.Errorf("heads observed %v, want ~0.5", obs)
	}
}

func TestSimulatorSimRuns(t *testing.T) {
	lab := newTestLab(t)
	sim, err := lab.NewSimulatorWithSeed(1, 77)
	if err != nil {
		t.Fatalf("NewSimulatorWithSeed failed: %v", err)
	}

	report, est, _, err := sim.SimRuns(4, 20, 1, 1_000, true, false)
	if err != nil {
		t.Fatalf("SimRuns failed: %v", err)
	}
	if report.Summary.Draws != 20*1_000 {
		t.Errorf("draws: %d", report.Summary.Draws)
	}
	if est == nil || len(est.Labels) != 3 || len(est.Spread) != 3 {
		t.Fatalf("unexpected estimator: %+v", est)
	}
}

func TestSimulatorRejectsBadParams(t *testing.T) {
	lab := newTestLab(t)
	sim, err := lab.NewSimulatorWithSeed(1, 1)
	if err != nil {
		t.Fatalf("NewSimulatorWithSeed failed: %v", err)
	}
	if _, _, err := sim.Sim(0, 10, true, false); err == nil {
		t.Error("batch 0 should fail")
	}
	if _, _, err := sim.Sim(1, 0, true, false); err == nil {
		t.Error("round 0 should fail")
	}
	if _, _, err := sim.Sim(4, 10, false, false); err == nil {
		t.Error("without-replacement batch above drawable should fail")
	}
	if _, _, err := sim.SimMP(1, 10, 0, true, false); err == nil {
		t.Error("zero workers should fail")
	}
}

func TestBuildRuntimeDraw(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(2)
	if err != nil {
		t.Fatalf("BuildRuntime failed: %v", err)
	}
	defer rt.Close()

	req := &dto.DrawRequest{TableName: "coin", TableId: 2, Count: 3, Replace: true}
	res, err := rt.Draw(context.Background(), req)
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if res.TableID != catalog.TID(2) || res.Count != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := rt.Draw(context.Background(), &dto.DrawRequest{TableId: 42, Count: 1}); err == nil {
		t.Error("unknown table id should fail")
	}

	ms := rt.Metrics()
	if len(ms) != 2 || ms[0].PoolSize != 2 {
		t.Errorf("unexpected metrics: %+v", ms)
	}
}

func TestRuntimeClosedRejectsDraw(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("BuildRuntime failed: %v", err)
	}
	rt.Close()
	if !rt.Closed() {
		t.Fatal("runtime should be closed")
	}
	req := &dto.DrawRequest{TableName: "coin", TableId: 2, Count: 1, Replace: true}
	if _, err := rt.Draw(context.Background(), req); err == nil {
		t.Error("draw after close should fail")
	}
}

func TestPickerPoolReturnsOnWarn(t *testing.T) {
	lab := newTestLab(t)
	rt, err := lab.BuildRuntime(1)
	if err != nil {
		t.Fatalf("BuildRuntime failed: %v", err)
	}
	defer rt.Close()

	// validation warn 不應淘汰 Picker：連續打壞請求後 pool 仍可服務
	bad := &dto.DrawRequest{TableName: "wrong", TableId: 2, Count: 1, Replace: true}
	for i := 0; i < 5; i++ {
		if _, err := rt.Draw(context.Background(), bad); err == nil {
			t.Fatal("expected validation error")
		}
	}
	good := &dto.DrawRequest{TableName: "coin", TableId: 2, Count: 1, Replace: true}
	if _, err := rt.Draw(context.Background(), good); err != nil {
		t.Fatalf("pool should still serve after warns: %v", err)
	}
	mp := rt.pools[2]
	if mp.ReBuild() != 0 {
		t.Errorf("warn errors should not rebuild, got %d", mp.ReBuild())
	}
}

func TestDevSimulatorReproducible(t *testing.T) {
	lab := newTestLab(t)
	dev, err := lab.NewDevSimulator(1, 123)
	if err != nil {
		t.Fatalf("NewDevSimulator failed: %v", err)
	}

	rep, err := dev.Draws(2, true, 10)
	if err != nil {
		t.Fatalf("Draws failed: %v", err)
	}
	if rep.Round != 10 || rep.Draws != 20 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	// 以 before 快照重放，結果要一致
	rep2, err := dev.RestoreDraws(rep.Before, 2, true, 10)
	if err != nil {
		t.Fatalf("RestoreDraws failed: %v", err)
	}
	for i := range rep.Results {
		for j := range rep.Results[i].Indices {
			if rep.Results[i].Indices[j] != rep2.Results[i].Indices[j] {
				t.Fatalf("restore diverged at result %d index %d", i, j)
			}
		}
	}

	simRep, err := dev.Sim(1, true, 1_000)
	if err != nil {
		t.Fatalf("dev Sim failed: %v", err)
	}
	if simRep.Stat.Summary.Draws != 1_000 {
		t.Errorf("draws: %d", simRep.Stat.Summary.Draws)
	}
	simRep2, err := dev.RestoreSim(simRep.Before, 1, true, 1_000)
	if err != nil {
		t.Fatalf("RestoreSim failed: %v", err)
	}
	if simRep.After != simRep2.After {
		t.Error("restored sim should end at the same core state")
	}
}
