package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gftdcojp/gonats/header"
)

func encodeAll(t *testing.T, fn func(e *Encoder) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := fn(NewEncoder(&buf)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestEncodeFrames(t *testing.T) {
	tests := []struct {
		name string
		fn   func(e *Encoder) error
		want string
	}{
		{"ping", func(e *Encoder) error { return e.Ping() }, "PING\r\n"},
		{"pong", func(e *Encoder) error { return e.Pong() }, "PONG\r\n"},
		{"sub", func(e *Encoder) error { return e.Sub("foo.bar", "", "1") }, "SUB foo.bar 1\r\n"},
		{"sub queue", func(e *Encoder) error { return e.Sub("foo", "workers", "2") }, "SUB foo workers 2\r\n"},
		{"unsub", func(e *Encoder) error { return e.Unsub("3", 0) }, "UNSUB 3\r\n"},
		{"unsub max", func(e *Encoder) error { return e.Unsub("3", 10) }, "UNSUB 3 10\r\n"},
		{"pub", func(e *Encoder) error { return e.Pub("foo", "", []byte("hello")) }, "PUB foo 5\r\nhello\r\n"},
		{"pub reply", func(e *Encoder) error { return e.Pub("foo", "bar", []byte("hi")) }, "PUB foo bar 2\r\nhi\r\n"},
		{"pub empty", func(e *Encoder) error { return e.Pub("foo", "", nil) }, "PUB foo 0\r\n\r\n"},
	}
	for _, tt := range tests {
		if got := string(encodeAll(t, tt.fn)); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestEncodeConnect(t *testing.T) {
	got := string(encodeAll(t, func(e *Encoder) error {
		return e.Connect(&ConnectInfo{Protocol: 1, Headers: true, NoResponders: true, Echo: true})
	}))
	if !bytes.HasPrefix([]byte(got), []byte("CONNECT {")) || !bytes.HasSuffix([]byte(got), []byte("}\r\n")) {
		t.Fatalf("CONNECT frame malformed: %q", got)
	}
	for _, want := range []string{`"protocol":1`, `"headers":true`, `"no_responders":true`, `"echo":true`} {
		if !bytes.Contains([]byte(got), []byte(want)) {
			t.Errorf("CONNECT missing %s: %q", want, got)
		}
	}
}

func TestEncodeHPub(t *testing.T) {
	h := header.New()
	h.Add("A", "1")
	got := string(encodeAll(t, func(e *Encoder) error {
		return e.HPub("foo", "", h, []byte("xy"))
	}))
	// Header block: "NATS/1.0\r\nA: 1\r\n\r\n" = 18 bytes, tlen = 20.
	want := "HPUB foo 18 20\r\nNATS/1.0\r\nA: 1\r\n\r\nxy\r\n"
	if got != want {
		t.Fatalf("HPUB = %q, want %q", got, want)
	}
}

func feedAndNext(t *testing.T, input string) ServerOp {
	t.Helper()
	p := NewParser()
	p.Feed([]byte(input))
	op, err := p.Next()
	if err != nil {
		t.Fatalf("Next(%q): %v", input, err)
	}
	return op
}

func TestParseSimpleOps(t *testing.T) {
	if _, ok := feedAndNext(t, "PING\r\n").(PingOp); !ok {
		t.Error("PING not decoded")
	}
	if _, ok := feedAndNext(t, "PONG\r\n").(PongOp); !ok {
		t.Error("PONG not decoded")
	}
	if _, ok := feedAndNext(t, "+OK\r\n").(OKOp); !ok {
		t.Error("+OK not decoded")
	}
	if _, ok := feedAndNext(t, "ping\r\n").(PingOp); !ok {
		t.Error("lowercase ping not decoded")
	}
}

func TestParseErr(t *testing.T) {
	tests := []struct{ in, want string }{
		{"-ERR 'Unknown Protocol Operation'\r\n", "Unknown Protocol Operation"},
		{"-ERR \"Stale Connection\"\r\n", "Stale Connection"},
		{"-ERR plain\r\n", "plain"},
	}
	for _, tt := range tests {
		op, ok := feedAndNext(t, tt.in).(ErrOp)
		if !ok || op.Message != tt.want {
			t.Errorf("parse %q = %#v, want message %q", tt.in, op, tt.want)
		}
	}
}

func TestParseInfo(t *testing.T) {
	in := `INFO {"server_id":"NABC","proto":1,"max_payload":1048576,"tls_required":true,"headers":true,"jetstream":true,"nonce":"abc"}` + "\r\n"
	op, ok := feedAndNext(t, in).(InfoOp)
	if !ok {
		t.Fatal("INFO not decoded")
	}
	if op.Info.ServerID != "NABC" || op.Info.MaxPayload != 1048576 || !op.Info.TLSRequired ||
		!op.Info.Headers || !op.Info.JetStream || op.Info.Nonce != "abc" {
		t.Fatalf("INFO fields wrong: %+v", op.Info)
	}
}

func TestParseMsg(t *testing.T) {
	op, ok := feedAndNext(t, "MSG test.a.one 1 5\r\nhello\r\n").(MsgOp)
	if !ok {
		t.Fatal("MSG not decoded")
	}
	if op.Subject != "test.a.one" || op.SID != "1" || op.Reply != "" || string(op.Payload) != "hello" {
		t.Fatalf("MSG fields wrong: %+v", op)
	}

	op, ok = feedAndNext(t, "MSG foo 7 _INBOX.x 0\r\n\r\n").(MsgOp)
	if !ok {
		t.Fatal("MSG with reply not decoded")
	}
	if op.Reply != "_INBOX.x" || len(op.Payload) != 0 {
		t.Fatalf("MSG fields wrong: %+v", op)
	}
}

func TestParseHMsg(t *testing.T) {
	block := "NATS/1.0\r\nA: 1\r\n\r\n" // 18 bytes
	in := "HMSG foo 1 reply.to 18 23\r\n" + block + "hello\r\n"
	op, ok := feedAndNext(t, in).(MsgOp)
	if !ok {
		t.Fatal("HMSG not decoded")
	}
	if op.Subject != "foo" || op.Reply != "reply.to" || string(op.Payload) != "hello" {
		t.Fatalf("HMSG fields wrong: %+v", op)
	}
	if op.Headers == nil || op.Headers.Get("A") != "1" {
		t.Fatalf("HMSG headers wrong: %+v", op.Headers)
	}
}

func TestParseHMsgStatus(t *testing.T) {
	block := "NATS/1.0 503\r\n\r\n" // 16 bytes
	in := "HMSG _INBOX.abc 1 16 16\r\n" + block + "\r\n"
	op, ok := feedAndNext(t, in).(MsgOp)
	if !ok {
		t.Fatal("HMSG status not decoded")
	}
	if op.Headers.Status() != 503 {
		t.Fatalf("status = %d, want 503", op.Headers.Status())
	}
}

// Every frame split at every byte boundary must decode to the same
// single op with no spurious ops in between.
func TestParseResumable(t *testing.T) {
	frames := []string{
		"PING\r\n",
		"MSG test.a.one 1 5\r\nhello\r\n",
		"HMSG foo 1 18 23\r\nNATS/1.0\r\nA: 1\r\n\r\nhello\r\n",
		`INFO {"server_id":"X","proto":1}` + "\r\n",
		"-ERR 'oops'\r\n",
	}
	for _, frame := range frames {
		for cut := 1; cut < len(frame); cut++ {
			p := NewParser()
			p.Feed([]byte(frame[:cut]))
			op, err := p.Next()
			if err != nil {
				t.Fatalf("frame %q cut %d: unexpected error %v", frame, cut, err)
			}
			if op != nil && cut < len(frame) {
				// A complete decode before the full frame arrived is
				// only possible if the cut fell after the frame's
				// final byte, which the loop bound excludes.
				t.Fatalf("frame %q cut %d: spurious op %#v", frame, cut, op)
			}
			p.Feed([]byte(frame[cut:]))
			op, err = p.Next()
			if err != nil {
				t.Fatalf("frame %q cut %d: %v", frame, cut, err)
			}
			if op == nil {
				t.Fatalf("frame %q cut %d: no op after full feed", frame, cut)
			}
		}
	}
}

func TestParseSequence(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("PING\r\nMSG a 1 2\r\nhi\r\nPONG\r\n"))
	var ops []ServerOp
	for {
		op, err := p.Next()
		if err != nil {
			t.Fatal(err)
		}
		if op == nil {
			break
		}
		ops = append(ops, op)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d ops, want 3", len(ops))
	}
	if _, ok := ops[0].(PingOp); !ok {
		t.Errorf("ops[0] = %#v", ops[0])
	}
	if m, ok := ops[1].(MsgOp); !ok || string(m.Payload) != "hi" {
		t.Errorf("ops[1] = %#v", ops[1])
	}
	if _, ok := ops[2].(PongOp); !ok {
		t.Errorf("ops[2] = %#v", ops[2])
	}
}

func TestParseInvalid(t *testing.T) {
	bad := []string{
		"BOGUS foo\r\n",
		"MSG foo 1 abc\r\n",
		"MSG foo 1 -1\r\n",
		"HMSG foo 1 x 10\r\n",
		"HMSG foo 1 10 5\r\n",
		"INFO\r\n",
		"INFO  \r\n",
		"INFO {not json}\r\n",
	}
	for _, in := range bad {
		p := NewParser()
		p.Feed([]byte(in))
		_, err := p.Next()
		var ime *InvalidMessageError
		if !errors.As(err, &ime) {
			t.Errorf("Next(%q) error = %v, want InvalidMessageError", in, err)
		}
	}
}
