package corefmt

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/zintix-labs/randlab/errs"
)

// Package corefmt 收攏「bytes <-> 文字 / 二進位框架」的轉換工具。
//
// 使用場景：
//   - dto：Core 的 Snapshot（[]byte）要走 JSON 傳輸時轉 Base64。
//   - recorder：報表封存時以 blob frame（uvarint 長度前綴）寫入壓縮流。

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(err, "decode base64 failed")
	}
	return b, nil
}

// EncodeBase64URL 以 URL-safe base64 編碼（JSON/HTTP 傳輸用）。
func EncodeBase64URL(b []byte) string {
	return base64.URLEncoding.EncodeToString(b)
}

func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(err, "decode base64url failed")
	}
	return b, nil
}

func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(err, "decode hex failed")
	}
	return b, nil
}

// WriteBlobFrame 將 payload 以長度前綴（uvarint）框架寫入 w。
//
//	frame := uvarint(len(payload)) || payload
//
// 注意：此格式不是 JSON-friendly；要走 JSON/HTTP 文字傳輸請改用 Base64。
func WriteBlobFrame(w io.Writer, payload []byte) error {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(payload)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return errs.Wrap(err, "write blob frame header failed")
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(err, "write blob frame payload failed")
	}
	return nil
}

// ReadBlobFrame 讀出一個由 WriteBlobFrame 產生的框架。
//
// maxBytes 是防止不可信輸入造成無上限配置的安全上限；讀取信任的本地檔案可傳入較大值。
func ReadBlobFrame(r io.Reader, maxBytes uint64) ([]byte, error) {
	br := bufio.NewReader(r)
	ln, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errs.Wrap(err, "read blob frame header failed")
	}
	if maxBytes > 0 && ln > maxBytes {
		return nil, errs.NewWarn("read blob frame failed: payload exceeds maxBytes")
	}
	buf := make([]byte, ln)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, errs.Wrap(err, "read blob frame payload failed")
	}
	return buf, nil
}
