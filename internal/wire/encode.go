package wire

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/gftdcojp/gonats/header"
)

const crlf = "\r\n"

// Encoder writes client operations in wire form. It performs no
// buffering of its own; callers hand it the connection's buffered
// writer and control flushing.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) writeStrings(parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(e.w, p); err != nil {
			return err
		}
	}
	return nil
}

// Connect emits CONNECT <json>.
func (e *Encoder) Connect(info *ConnectInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := e.writeStrings("CONNECT "); err != nil {
		return err
	}
	if _, err := e.w.Write(payload); err != nil {
		return err
	}
	return e.writeStrings(crlf)
}

// Ping emits PING.
func (e *Encoder) Ping() error {
	return e.writeStrings("PING", crlf)
}

// Pong emits PONG.
func (e *Encoder) Pong() error {
	return e.writeStrings("PONG", crlf)
}

// Sub emits SUB <subject> [queue] <sid>.
func (e *Encoder) Sub(subj, queue, sid string) error {
	if queue != "" {
		return e.writeStrings("SUB ", subj, " ", queue, " ", sid, crlf)
	}
	return e.writeStrings("SUB ", subj, " ", sid, crlf)
}

// Unsub emits UNSUB <sid> [max]. A max of 0 omits the limit.
func (e *Encoder) Unsub(sid string, max int) error {
	if max > 0 {
		return e.writeStrings("UNSUB ", sid, " ", strconv.Itoa(max), crlf)
	}
	return e.writeStrings("UNSUB ", sid, crlf)
}

// Pub emits PUB <subject> [reply] <n> followed by the payload.
func (e *Encoder) Pub(subj, reply string, payload []byte) error {
	if reply != "" {
		if err := e.writeStrings("PUB ", subj, " ", reply, " ", strconv.Itoa(len(payload)), crlf); err != nil {
			return err
		}
	} else {
		if err := e.writeStrings("PUB ", subj, " ", strconv.Itoa(len(payload)), crlf); err != nil {
			return err
		}
	}
	if _, err := e.w.Write(payload); err != nil {
		return err
	}
	return e.writeStrings(crlf)
}

// HPub emits HPUB <subject> [reply] <hlen> <tlen> followed by the
// header block and payload. hlen covers the header block including
// its terminating blank line; tlen = hlen + len(payload).
func (e *Encoder) HPub(subj, reply string, hdr *header.Headers, payload []byte) error {
	block := hdr.Encode()
	hlen := strconv.Itoa(len(block))
	tlen := strconv.Itoa(len(block) + len(payload))
	if reply != "" {
		if err := e.writeStrings("HPUB ", subj, " ", reply, " ", hlen, " ", tlen, crlf); err != nil {
			return err
		}
	} else {
		if err := e.writeStrings("HPUB ", subj, " ", hlen, " ", tlen, crlf); err != nil {
			return err
		}
	}
	if _, err := e.w.Write(block); err != nil {
		return err
	}
	if _, err := e.w.Write(payload); err != nil {
		return err
	}
	return e.writeStrings(crlf)
}
