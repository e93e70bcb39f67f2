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

// 長時間模擬的落點紀錄可以封存後離線分析。
// 封存格式：blob frame（uvarint 長度前綴）包一段 zstd 壓縮的 JSON。
// 同一個 writer 可以連續寫入多個 frame（例如每個 worker 一份）。

package recorder

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/randlab/corefmt"
	"github.com/zintix-labs/randlab/errs"
)

// 單一封存 frame 的解壓上限，防止毀損或惡意輸入造成無上限配置
const maxArchiveBytes = 64 << 20

// WriteArchive 將紀錄員目前的狀態封存到 w。
func (s *DrawRecorder) WriteArchive(w io.Writer) error {
	jsonBytes, err := json.Marshal(s)
	if err != nil {
		return errs.Wrap(err, "archive: marshal recorder json")
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return errs.Wrap(err, "archive: create zstd writer")
	}
	if _, err := zw.Write(jsonBytes); err != nil {
		_ = zw.Close()
		return errs.Wrap(err, "archive: compress recorder json")
	}
	if err := zw.Close(); err != nil {
		return errs.Wrap(err, "archive: close zstd writer")
	}

	return corefmt.WriteBlobFrame(w, buf.Bytes())
}

// ReadArchive 自 r 讀回一個封存的紀錄員。
// 讀回的內容會重新走建構驗證，毀損的權重或長度不一致會被攔下。
func ReadArchive(r io.Reader) (*DrawRecorder, error) {
	compressed, err := corefmt.ReadBlobFrame(r, maxArchiveBytes)
	if err != nil {
		return nil, errs.Wrap(err, "archive: read blob frame")
	}

	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errs.Wrap(err, "archive: create zstd reader")
	}
	defer zr.Close()

	jsonBytes, err := io.ReadAll(zr)
	if err != nil {
		return nil, errs.Wrap(err, "archive: decompress recorder json")
	}

	var raw DrawRecorder
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		return nil, errs.Wrap(err, "archive: unmarshal recorder json")
	}

	s, err := NewDrawRecorder(raw.TableName, raw.Labels, raw.Weights, raw.Replacement)
	if err != nil {
		return nil, errs.Wrap(err, "archive: invalid recorder payload")
	}
	if len(raw.Counts) != len(s.Counts) {
		return nil, errs.NewFatal("archive: counts length mismatch")
	}
	copy(s.Counts, raw.Counts)
	s.Draws = raw.Draws

	return s, nil
}
