package corefmt

import (
	"bytes"
	"testing"
)

func TestBase64RoundTrip(t *testing.T) {
	src := []byte{0x00, 0xFF, 0x10, 0x7F, 0xA5}

	s := EncodeBase64(src)
	got, err := DecodeBase64(s)
	if err != nil {
		t.Fatalf("DecodeBase64 failed: %v", err)
	}
	if !bytes.Equal(src, got) {
		t.Errorf("base64 round trip mismatch: %v vs %v", src, got)
	}

	if _, err := DecodeBase64("not base64!!"); err == nil {
		t.Error("invalid base64 should fail")
	}
}

func TestBase64URLIsURLSafe(t *testing.T) {
	// 0xFF 0xFE... 會在標準 base64 產生 '+' '/'；URL-safe 版不該出現
	src := []byte{0xFF, 0xFE, 0xFD, 0xFC, 0xFB}
	s := EncodeBase64URL(src)
	if bytes.ContainsAny([]byte(s), "+/") {
		t.Errorf("url-safe encoding contains +/: %s", s)
	}
	got, err := DecodeBase64URL(s)
	if err != nil {
		t.Fatalf("DecodeBase64URL failed: %v", err)
	}
	if !bytes.Equal(src, got) {
		t.Errorf("base64url round trip mismatch")
	}
}

func TestHexRoundTrip(t *testing.T) {
	src := []byte("snapshot-bytes")
	got, err := DecodeHex(EncodeHex(src))
	if err != nil {
		t.Fatalf("DecodeHex failed: %v", err)
	}
	if !bytes.Equal(src, got) {
		t.Error("hex round trip mismatch")
	}
}

func TestBlobFrameRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 300)

	var buf bytes.Buffer
	if err := WriteBlobFrame(&buf, payload); err != nil {
		t.Fatalf("WriteBlobFrame failed: %v", err)
	}
	got, err := ReadBlobFrame(&buf, 1<<20)
	if err != nil {
		t.Fatalf("ReadBlobFrame failed: %v", err)
	}
	if !bytes.Equal(payload, got) {
		t.Error("blob frame round trip mismatch")
	}
}

func TestBlobFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBlobFrame(&buf, make([]byte, 1024)); err != nil {
		t.Fatalf("WriteBlobFrame failed: %v", err)
	}
	if _, err := ReadBlobFrame(&buf, 100); err == nil {
		t.Error("payload above maxBytes should fail")
	}
}
