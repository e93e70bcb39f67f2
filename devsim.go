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
	"github.com/zintix-labs/randlab/corefmt"
	"github.com/zintix-labs/randlab/dto"
	"github.com/zintix-labs/randlab/errs"
	"github.com/zintix-labs/randlab/stats"
)

// DevSimulator
//
// 只提供給Dev模式使用的模擬器，單線(不併發)，重點在可審計、可重現
type DevSimulator struct {
	sim      *Simulator // 只開放Sim功能
	p        *Picker    // 同步seed
	before   []byte
	after    []byte
	before64 string
	after64  string
}

type DevDrawReport struct {
	Before  string           `json:"start_b64u"`
	After   string           `json:"after_b64u"`
	Round   int              `json:"round"`
	Draws   int              `json:"draws"`
	Results []dto.DrawResult `json:"results"`
}

func (d *DevSimulator) drawOne(batch int, replace bool) (dto.DrawResult, error) {
	req := &dto.DrawRequest{
		TableName: d.p.tableName,
		TableId:   d.p.tableId,
		Count:     batch,
		Replace:   replace,
	}
	return d.p.Draw(req)
}

func (d *DevSimulator) Draws(batch int, replace bool, round int) (DevDrawReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return DevDrawReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}
	if batch < 1 {
		return DevDrawReport{}, errs.NewWarn("batch must > 0")
	}

	// draw
	ds := make([]dto.DrawResult, 0, round)
	for range round {
		result, err := d.drawOne(batch, replace)
		if err != nil {
			return DevDrawReport{}, errs.Wrap(err, "draw error")
		}
		ds = append(ds, result)
	}

	de := DevDrawReport{
		Before:  ds[0].State.StartCoreSnapB64U,
		After:   ds[len(ds)-1].State.AfterCoreSnapB64U,
		Round:   len(ds),
		Draws:   len(ds) * batch,
		Results: ds,
	}
	return de, nil
}

func (d *DevSimulator) RestoreDraws(be64 string, batch int, replace bool, round int) (DevDrawReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return DevDrawReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}
	// 解析seed
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return DevDrawReport{}, errs.NewWarn("decode seed failed" + err.Error())
	}
	// restore
	if err := d.p.RestoreCore(be); err != nil {
		return DevDrawReport{}, errs.NewWarn("picker restore failed")
	}
	return d.Draws(batch, replace, round)
}

type DevSimReport struct {
	Before string            `json:"before"`
	After  string            `json:"after"`
	Stat   *stats.DrawReport `json:"statistic"`
}

func (d *DevSimulator) Sim(batch int, replace bool, round int) (DevSimReport, error) {
	// 先存 before 快照
	m := d.sim.mBuf[0]
	be, err := m.SnapshotCore()
	if err != nil {
		return DevSimReport{}, err
	}
	be64 := corefmt.EncodeBase64URL(be)
	d.before = be
	d.before64 = be64

	// Draw
	if round < 1 || round > 3_000_000 {
		return DevSimReport{}, errs.NewWarn("round must be between 1 and 3,000,000")
	}
	stat, _, err := d.sim.Sim(batch, round, replace, false)
	if err != nil {
		return DevSimReport{}, errs.Wrap(err, "sim failed")
	}

	// 再存 after 快照
	af, err := m.SnapshotCore()
	if err != nil {
		return DevSimReport{}, err
	}
	af64 := corefmt.EncodeBase64URL(af)
	d.after = af
	d.after64 = af64

	return DevSimReport{
		Before: be64,
		After:  af64,
		Stat:   stat,
	}, nil
}

func (d *DevSimulator) RestoreSim(be64 string, batch int, replace bool, round int) (DevSimReport, error) {
	// 反解析 string -> []byte
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return DevSimReport{}, errs.Wrap(err, "decode seed failed")
	}
	d.before = be
	d.before64 = be64

	// restore
	if err := d.sim.mBuf[0].RestoreCore(be); err != nil {
		return DevSimReport{}, errs.Wrap(err, "restore simulator failed")
	}

	return d.Sim(batch, replace, round)
}
