package header

import (
	"bytes"
	"testing"
)

func TestAddGetCaseInsensitive(t *testing.T) {
	h := New()
	h.Add("Nats-Msg-Id", "abc")
	if got := h.Get("nats-msg-id"); got != "abc" {
		t.Fatalf("Get = %q, want %q", got, "abc")
	}
	if got := h.Get("NATS-MSG-ID"); got != "abc" {
		t.Fatalf("Get = %q, want %q", got, "abc")
	}
	if got := h.Get("missing"); got != "" {
		t.Fatalf("Get missing = %q, want empty", got)
	}
}

func TestDuplicatesPreserved(t *testing.T) {
	h := New()
	h.Add("X-Tag", "a")
	h.Add("x-tag", "b")
	h.Add("X-TAG", "c")
	vals := h.Values("X-Tag")
	if len(vals) != 3 || vals[0] != "a" || vals[1] != "b" || vals[2] != "c" {
		t.Fatalf("Values = %v, want [a b c]", vals)
	}

	h.Set("X-Tag", "only")
	if got := h.Values("X-Tag"); len(got) != 1 || got[0] != "only" {
		t.Fatalf("after Set, Values = %v", got)
	}

	h.Del("x-TAG")
	if h.Len() != 0 {
		t.Fatalf("after Del, Len = %d", h.Len())
	}
}

func TestEncodeOrder(t *testing.T) {
	h := New()
	h.Add("B", "2")
	h.Add("A", "1")
	h.Add("B", "3")
	want := "NATS/1.0\r\nB: 2\r\nA: 1\r\nB: 3\r\n\r\n"
	if got := string(h.Encode()); got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}

func TestEncodeStatusLine(t *testing.T) {
	h := New()
	h.SetStatus(503, "No Responders")
	want := "NATS/1.0 503 No Responders\r\n\r\n"
	if got := string(h.Encode()); got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	h := New()
	h.Add("Content-Type", "text/plain")
	h.Add("X-Tag", "a")
	h.Add("X-Tag", "b")

	decoded, err := Decode(h.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Len() != 3 {
		t.Fatalf("decoded Len = %d, want 3", decoded.Len())
	}
	if vals := decoded.Values("X-Tag"); len(vals) != 2 || vals[0] != "a" || vals[1] != "b" {
		t.Fatalf("decoded Values(X-Tag) = %v", vals)
	}
	if !bytes.Equal(decoded.Encode(), h.Encode()) {
		t.Fatalf("round trip not stable:\n%q\n%q", decoded.Encode(), h.Encode())
	}
}

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		block  string
		status int
		desc   string
	}{
		{"NATS/1.0 404\r\n\r\n", 404, ""},
		{"NATS/1.0 503 No Responders\r\n\r\n", 503, "No Responders"},
		{"NATS/1.0 408 Request Timeout\r\n\r\n", 408, "Request Timeout"},
		{"NATS/1.0\r\n\r\n", 0, ""},
	}
	for _, tt := range tests {
		h, err := Decode([]byte(tt.block))
		if err != nil {
			t.Fatalf("Decode(%q): %v", tt.block, err)
		}
		if h.Status() != tt.status || h.Description() != tt.desc {
			t.Errorf("Decode(%q) = status %d desc %q, want %d %q",
				tt.block, h.Status(), h.Description(), tt.status, tt.desc)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	bad := []string{
		"HTTP/1.1 200\r\n\r\n",
		"NATS/1.0 abc\r\n\r\n",
		"NATS/1.0\r\nno-colon-line\r\n\r\n",
	}
	for _, block := range bad {
		if _, err := Decode([]byte(block)); err == nil {
			t.Errorf("Decode(%q) = nil error, want failure", block)
		}
	}
}

func TestDecodeTrimsAndDropsEmptyNames(t *testing.T) {
	block := "NATS/1.0\r\n  Name  :  padded value \r\n: dropped\r\n\r\n"
	h, err := Decode([]byte(block))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}
	if got := h.Get("Name"); got != "padded value" {
		t.Fatalf("Get(Name) = %q", got)
	}
}

func TestJSONLosesOrderButKeepsValues(t *testing.T) {
	h := New()
	h.Add("A", "1")
	h.Add("A", "2")
	data, err := h.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var back Headers
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if vals := back.Values("A"); len(vals) != 2 {
		t.Fatalf("Values = %v, want two entries", vals)
	}
}
