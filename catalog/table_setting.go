package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zintix-labs/randlab/errs"
	"gopkg.in/yaml.v3"
)

// TID 權重表編號
type TID uint32

// TableSetting 描述一張可抽樣的權重表。
//
// 權重表以 YAML/JSON 檔定義、由 Catalog 管理；
// 每個 entry 是「標籤 + 權重」的配對，順序即為母體索引順序。
type TableSetting struct {
	TableName string         `yaml:"table_name" json:"table_name"`
	TableID   TID            `yaml:"table_id"   json:"table_id"`
	Entries   []EntrySetting `yaml:"entries"    json:"entries"`
}

type EntrySetting struct {
	Label  string  `yaml:"label"  json:"label"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// GetTableSettingByYAML
// 會讀取 YAML 設定並執行基本檢查後回傳。
func GetTableSettingByYAML(data []byte) (*TableSetting, error) {
	ts := &TableSetting{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 嚴格檢查：多寫/拼錯欄位就報錯
	if err := dec.Decode(ts); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	if err := ts.valid(); err != nil {
		return nil, errs.Wrap(err, "table setting initialized err")
	}

	return ts, nil
}

// GetTableSettingByJSON
// 會讀取 Json 設定並執行基本檢查後回傳
func GetTableSettingByJSON(data []byte) (*TableSetting, error) {
	ts := &TableSetting{}
	if err := json.Unmarshal(data, ts); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	if err := ts.valid(); err != nil {
		return nil, errs.Wrap(err, "table setting initialized err")
	}

	return ts, nil
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (ts *TableSetting) valid() error {
	if ts.TableName == "" {
		return errs.NewFatal("empty table_name")
	}

	if len(ts.Entries) == 0 {
		return errs.NewFatal(fmt.Sprintf("table_name: %s err:empty entries", ts.TableName))
	}

	totalW := 0.0
	for i, e := range ts.Entries {
		if e.Label == "" {
			return errs.NewFatal(fmt.Sprintf("table_name: %s err:empty label at entry %d", ts.TableName, i))
		}
		if e.Weight < 0 || e.Weight != e.Weight {
			return errs.NewFatal(fmt.Sprintf("table_name: %s err:invalid weight %v at entry %d", ts.TableName, e.Weight, i))
		}
		totalW += e.Weight
	}
	if totalW <= 0 {
		return errs.NewFatal(fmt.Sprintf("table_name: %s err:total weight is zero", ts.TableName))
	}

	return nil
}

// Labels 回傳各 entry 的標籤（依母體索引順序）。
func (ts *TableSetting) Labels() []string {
	out := make([]string, len(ts.Entries))
	for i, e := range ts.Entries {
		out[i] = e.Label
	}
	return out
}

// Weights 回傳各 entry 的權重（依母體索引順序）。
func (ts *TableSetting) Weights() []float64 {
	out := make([]float64, len(ts.Entries))
	for i, e := range ts.Entries {
		out[i] = e.Weight
	}
	return out
}
