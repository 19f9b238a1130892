package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gftdcojp/gonats/header"
)

// compactThreshold is how many consumed bytes the parser tolerates
// before sliding the remainder to the front of its buffer.
const compactThreshold = 32 * 1024

// Parser decodes server operations from a byte stream. Input arrives
// in arbitrary chunks via Feed; Next returns one operation at a time
// and rewinds to the start of the frame whenever the buffered bytes
// do not yet hold a complete frame.
type Parser struct {
	buf []byte
	pos int
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends raw bytes from the socket.
func (p *Parser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Buffered returns the number of unconsumed bytes.
func (p *Parser) Buffered() int {
	return len(p.buf) - p.pos
}

func (p *Parser) compact() {
	if p.pos >= compactThreshold {
		p.buf = append(p.buf[:0], p.buf[p.pos:]...)
		p.pos = 0
	}
}

// Next decodes the next server operation. It returns (nil, nil) when
// the buffer does not hold a complete frame; feeding more bytes and
// calling Next again resumes from the frame start.
func (p *Parser) Next() (ServerOp, error) {
	lineEnd := bytes.Index(p.buf[p.pos:], []byte(crlf))
	if lineEnd < 0 {
		return nil, nil
	}
	line := string(p.buf[p.pos : p.pos+lineEnd])
	afterLine := p.pos + lineEnd + len(crlf)

	cmd, args, _ := strings.Cut(line, " ")
	switch strings.ToUpper(cmd) {
	case "INFO":
		if strings.TrimSpace(args) == "" {
			return nil, &InvalidMessageError{Reason: "INFO without payload"}
		}
		var info ServerInfo
		if err := json.Unmarshal([]byte(args), &info); err != nil {
			return nil, &InvalidMessageError{Reason: fmt.Sprintf("INFO payload: %v", err)}
		}
		p.advance(afterLine)
		return InfoOp{Info: info}, nil

	case "MSG":
		return p.parseMsg(args, afterLine)

	case "HMSG":
		return p.parseHMsg(args, afterLine)

	case "PING":
		p.advance(afterLine)
		return PingOp{}, nil

	case "PONG":
		p.advance(afterLine)
		return PongOp{}, nil

	case "+OK":
		p.advance(afterLine)
		return OKOp{}, nil

	case "-ERR":
		p.advance(afterLine)
		return ErrOp{Message: stripQuotes(strings.TrimSpace(args))}, nil

	default:
		return nil, &InvalidMessageError{Reason: fmt.Sprintf("unknown command %q", cmd)}
	}
}

func (p *Parser) advance(to int) {
	p.pos = to
	p.compact()
}

// parseMsg handles MSG <subject> <sid> [reply] <n>.
func (p *Parser) parseMsg(args string, afterLine int) (ServerOp, error) {
	fields := strings.Fields(args)
	var subj, sid, reply string
	var sizeField string
	switch len(fields) {
	case 3:
		subj, sid, sizeField = fields[0], fields[1], fields[2]
	case 4:
		subj, sid, reply, sizeField = fields[0], fields[1], fields[2], fields[3]
	default:
		return nil, &InvalidMessageError{Reason: fmt.Sprintf("MSG with %d arguments", len(fields))}
	}

	n, err := parseSize(sizeField)
	if err != nil {
		return nil, err
	}

	if len(p.buf)-afterLine < int(n)+len(crlf) {
		return nil, nil // rewind: payload not fully buffered
	}
	payload := make([]byte, n)
	copy(payload, p.buf[afterLine:afterLine+int(n)])
	if !bytes.HasPrefix(p.buf[afterLine+int(n):], []byte(crlf)) {
		return nil, &InvalidMessageError{Reason: "MSG payload not CRLF terminated"}
	}
	p.advance(afterLine + int(n) + len(crlf))
	return MsgOp{Subject: subj, SID: sid, Reply: reply, Payload: payload}, nil
}

// parseHMsg handles HMSG <subject> <sid> [reply] <hlen> <tlen>.
func (p *Parser) parseHMsg(args string, afterLine int) (ServerOp, error) {
	fields := strings.Fields(args)
	var subj, sid, reply string
	var hlenField, tlenField string
	switch len(fields) {
	case 4:
		subj, sid, hlenField, tlenField = fields[0], fields[1], fields[2], fields[3]
	case 5:
		subj, sid, reply, hlenField, tlenField = fields[0], fields[1], fields[2], fields[3], fields[4]
	default:
		return nil, &InvalidMessageError{Reason: fmt.Sprintf("HMSG with %d arguments", len(fields))}
	}

	hlen, err := parseSize(hlenField)
	if err != nil {
		return nil, err
	}
	tlen, err := parseSize(tlenField)
	if err != nil {
		return nil, err
	}
	if tlen < hlen {
		return nil, &InvalidMessageError{Reason: "HMSG total length shorter than header length"}
	}

	if len(p.buf)-afterLine < int(tlen)+len(crlf) {
		return nil, nil // rewind: frame not fully buffered
	}

	hdr, err := header.Decode(p.buf[afterLine : afterLine+int(hlen)])
	if err != nil {
		return nil, &InvalidMessageError{Reason: err.Error()}
	}
	payload := make([]byte, tlen-hlen)
	copy(payload, p.buf[afterLine+int(hlen):afterLine+int(tlen)])
	if !bytes.HasPrefix(p.buf[afterLine+int(tlen):], []byte(crlf)) {
		return nil, &InvalidMessageError{Reason: "HMSG payload not CRLF terminated"}
	}
	p.advance(afterLine + int(tlen) + len(crlf))
	return MsgOp{Subject: subj, SID: sid, Reply: reply, Headers: hdr, Payload: payload}, nil
}

func parseSize(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &InvalidMessageError{Reason: fmt.Sprintf("non-numeric size %q", s)}
	}
	if n < 0 {
		return 0, &InvalidMessageError{Reason: fmt.Sprintf("negative size %d", n)}
	}
	return n, nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
