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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zintix-labs/randlab/corefmt"
)

func TestDecodeDrawRequestGET(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/draw?uid=u1&table=fruit&tid=7&count=3&replace=true", nil)
	req, err := DecodeDrawRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.UID != "u1" || req.TableName != "fruit" || req.TableId != 7 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Count != 3 || !req.Replace {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.StartState.HasPayload() {
		t.Fatalf("GET request should not carry start state")
	}
}

func TestDecodeDrawRequestPOST(t *testing.T) {
	payload := map[string]any{
		"uid":     "u2",
		"table":   "fruit",
		"tid":     9,
		"count":   5,
		"replace": false,
	}
	data, _ := json.Marshal(payload)
	r := httptest.NewRequest(http.MethodPost, "/draw", bytes.NewReader(data))
	req, err := DecodeDrawRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.TableId != 9 || req.Count != 5 || req.Replace {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestDecodeDrawRequestRejectsUnknownFields(t *testing.T) {
	data := []byte(`{"tid":1,"table":"fruit","count":1,"unknown":true}`)
	r := httptest.NewRequest(http.MethodPost, "/draw", bytes.NewReader(data))
	if _, err := DecodeDrawRequest(r); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestDecodeDrawRequestRejectsBadQuery(t *testing.T) {
	bad := []string{
		"/draw?tid=notanumber",
		"/draw?count=x",
		"/draw?replace=maybe",
	}
	for _, target := range bad {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		if _, err := DecodeDrawRequest(r); err == nil {
			t.Errorf("%s: expected error", target)
		}
	}
}

func TestStartStateSnapRoundTrip(t *testing.T) {
	snap := []byte{0x01, 0x02, 0xff, 0x00}
	req := &DrawRequest{
		StartState: &StartState{StartCoreSnapB64U: corefmt.EncodeBase64URL(snap)},
	}
	got, err := req.StartSnap()
	if err != nil {
		t.Fatalf("StartSnap failed: %v", err)
	}
	if !bytes.Equal(got, snap) {
		t.Fatalf("snap mismatch: %v", got)
	}

	// 缺省時視為新抽
	empty := &DrawRequest{}
	if got, err := empty.StartSnap(); err != nil || got != nil {
		t.Fatalf("empty start state: %v %v", got, err)
	}

	// 壞字串要報錯
	broken := &DrawRequest{StartState: &StartState{StartCoreSnapB64U: "%%%"}}
	if _, err := broken.StartSnap(); err == nil {
		t.Fatal("expected error for malformed base64url")
	}
}

func TestNewDrawResultDTO(t *testing.T) {
	res, err := NewDrawResultDTO("fruit", 1, true, []int{2, 0}, []string{"cherry", "apple"}, []byte{1}, []byte{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Count != 2 || res.Labels[0] != "cherry" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.State.StartCoreSnapB64U == "" || res.State.AfterCoreSnapB64U == "" {
		t.Fatalf("missing state snapshots: %+v", res.State)
	}

	if _, err := NewDrawResultDTO("fruit", 1, true, []int{1}, nil, nil, nil); err == nil {
		t.Fatal("length mismatch should fail")
	}
}
