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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zintix-labs/randlab/catalog"
	"github.com/zintix-labs/randlab/corefmt"
	"github.com/zintix-labs/randlab/errs"
)

type DrawRequest struct {
	UID       string      `json:"uid"`     // 唯一識別碼
	TableName string      `json:"table"`   // 要抽的權重表
	TableId   catalog.TID `json:"tid"`     // 權重表編號
	Count     int         `json:"count"`   // 抽取數量
	Replace   bool        `json:"replace"` // 是否放回
	// StartState 可選：由業務端帶入的引擎狀態（nil=新抽；帶 start_b64u=回放/續抽）。
	StartState *StartState `json:"start_state,omitempty"`
}

// DecodeDrawRequest 會把 HTTP 請求解碼成 DrawRequest。
//
// 支援：
//   - GET：從 query string 讀取參數（uid/table/tid/count/replace）。
//     注意：GET 建議僅用於「新抽」或簡單測試；巢狀狀態（start_state）建議使用 POST。
//   - POST：從 JSON body 反序列化（支援 start_state）。
//
// StartState（start_state）語意：
//   - start_state 缺省 / 為 null / 為空物件：視為「新抽」。
//   - start_state.start_b64u 有值：視為「回放（replay）/ 續抽（resume）」。
//   - 引擎的輸入只接受 start_b64u（Start）；after_b64u 只會出現在回應（DrawState），請求端不得自行填寫 after。
//
// 注意：
//   - 這裡只負責「解碼（decode）」與基本型別轉換，不做任何抽樣合法性校驗；
//     合法性（例如該 TID 是否存在、count 是否可抽）應由上層（Picker/Runtime）決定。
//   - 為避免過大 body 影響服務，POST 會對 body 做大小限制（預設 1MiB）。
//   - POST 會開啟 DisallowUnknownFields()，對未知欄位採用嚴格拒絕，以避免靜默丟資料。
func DecodeDrawRequest(r *http.Request) (*DrawRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}

	req := new(DrawRequest)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.UID = q.Get("uid")
		req.TableName = q.Get("table")

		if s := q.Get("tid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid tid: %v", err))
			}
			req.TableId = catalog.TID(u)
		}

		if s := q.Get("count"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid count: %v", err))
			}
			req.Count = v
		}

		if s := q.Get("replace"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, errs.NewWarn("invalid replace value " + err.Error())
			}
			req.Replace = v
		}

		return req, nil

	case http.MethodPost:
		// 防止 body 過大（預設 1MiB）
		const maxBody = 1 << 20
		body := io.LimitReader(r.Body, maxBody)
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("method not allowed")
	}
}

// StartState 是由業務端帶入的「引擎可恢復狀態」（可選）。
//
// 設計目標：
//   - 讓引擎維持純計算器（stateless / deterministic），而「可回放/可續抽」所需的狀態由業務端保存與回送。
//   - 新抽：start_state 缺省即可；引擎會自行產生本次的 RNG 內部狀態並在回應中回傳 Start/After。
//   - 回放（Replay）：業務端帶入當初記錄的 start_b64u，即可在相同輸入條件下重現該次抽樣結果。
//   - 續抽（Resume）：業務端把上一次回應的 after_b64u 當作下一次的 start_b64u 送入，以延續 RNG 流水。
//
// 重要約束：
//   - Request 只允許提供 Start（start_b64u）；After（after_b64u）只會由引擎在 Response 回傳。
type StartState struct {
	// StartCoreSnapB64U：RNG Core 的「起始快照」Base64URL（URL-safe base64）字串。
	//   - 缺省：視為新抽（引擎自行起始 RNG）。
	//   - 有值：視為回放/續抽（引擎從該快照 restore RNG）。
	StartCoreSnapB64U string `json:"start_b64u,omitempty"`
}

func (ss *StartState) HasPayload() bool {
	if ss == nil {
		return false
	}
	return ss.StartCoreSnapB64U != ""
}

// StartSnap 解碼請求端帶入的起始快照；缺省時回傳 nil（新抽）。
func (dr *DrawRequest) StartSnap() ([]byte, error) {
	if !dr.StartState.HasPayload() {
		return nil, nil
	}
	snap, err := corefmt.DecodeBase64URL(dr.StartState.StartCoreSnapB64U)
	if err != nil {
		return nil, errs.NewWarn("core snap decode failed " + err.Error())
	}
	return snap, nil
}
