// Package header implements the NATS message headers extension: an
// ordered multimap of name/value pairs with case-insensitive lookup
// and the "NATS/1.0" status-line semantics used by HPUB/HMSG frames.
package header

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Version is the literal every header block starts with.
const Version = "NATS/1.0"

// Status codes the server attaches to synthesized messages.
const (
	StatusNoMessages   = 404
	StatusTimeout      = 408
	StatusNoResponders = 503
)

const crlf = "\r\n"

type pair struct {
	name  string
	value string
}

// Headers is an ordered list of name/value pairs. Names compare
// case-insensitively on lookup but keep their original spelling.
// Duplicate names are allowed and preserved in insertion order.
//
// An optional status code and description are carried on the
// "NATS/1.0" line of the wire form.
type Headers struct {
	pairs       []pair
	status      int
	description string
}

// New returns empty Headers.
func New() *Headers {
	return &Headers{}
}

// Add appends a name/value pair, keeping earlier values for the same
// name. Empty names are ignored.
func (h *Headers) Add(name, value string) {
	if name == "" {
		return
	}
	h.pairs = append(h.pairs, pair{name: name, value: value})
}

// Set replaces every value for name with the single given value. The
// pair is appended if the name was absent.
func (h *Headers) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every pair whose name matches case-insensitively.
func (h *Headers) Del(name string) {
	kept := h.pairs[:0]
	for _, p := range h.pairs {
		if !strings.EqualFold(p.name, name) {
			kept = append(kept, p)
		}
	}
	h.pairs = kept
}

// Get returns the first value for name, or "" if absent.
func (h *Headers) Get(name string) string {
	for _, p := range h.pairs {
		if strings.EqualFold(p.name, name) {
			return p.value
		}
	}
	return ""
}

// Values returns every value for name in insertion order.
func (h *Headers) Values(name string) []string {
	var vals []string
	for _, p := range h.pairs {
		if strings.EqualFold(p.name, name) {
			vals = append(vals, p.value)
		}
	}
	return vals
}

// Len returns the number of pairs.
func (h *Headers) Len() int {
	return len(h.pairs)
}

// Each calls fn for every pair in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, p := range h.pairs {
		fn(p.name, p.value)
	}
}

// Status returns the status code from the version line, or 0.
func (h *Headers) Status() int {
	return h.status
}

// Description returns the status description from the version line.
func (h *Headers) Description() string {
	return h.description
}

// SetStatus sets the status code and description emitted on the
// version line.
func (h *Headers) SetStatus(code int, description string) {
	h.status = code
	h.description = description
}

// Encode renders the wire form: the version line, one line per pair
// in insertion order, and a blank terminator line.
func (h *Headers) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(Version)
	if h.status != 0 {
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(h.status))
		if h.description != "" {
			buf.WriteByte(' ')
			buf.WriteString(h.description)
		}
	}
	buf.WriteString(crlf)
	for _, p := range h.pairs {
		buf.WriteString(p.name)
		buf.WriteString(": ")
		buf.WriteString(p.value)
		buf.WriteString(crlf)
	}
	buf.WriteString(crlf)
	return buf.Bytes()
}

// Decode parses a wire-form header block. The block must begin with
// the version literal; the remainder of that line, if present, is
// parsed as "<status> [description]". Lines are split on the first
// ':' with surrounding whitespace trimmed; lines with empty names
// are dropped; duplicates are preserved.
func Decode(block []byte) (*Headers, error) {
	h := New()
	lines := strings.Split(string(block), crlf)
	if len(lines) == 0 || !strings.HasPrefix(lines[0], Version) {
		return nil, fmt.Errorf("header block missing %s prefix", Version)
	}

	rest := strings.TrimSpace(strings.TrimPrefix(lines[0], Version))
	if rest != "" {
		code, desc, _ := strings.Cut(rest, " ")
		n, err := strconv.Atoi(code)
		if err != nil {
			return nil, fmt.Errorf("malformed header status %q", code)
		}
		h.status = n
		h.description = strings.TrimSpace(desc)
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// MarshalJSON encodes the headers as a name → values object. The
// object form loses the relative order of values under different
// names; round-tripping through JSON is lossy for that ordering.
func (h *Headers) MarshalJSON() ([]byte, error) {
	m := make(map[string][]string, len(h.pairs))
	for _, p := range h.pairs {
		m[p.name] = append(m[p.name], p.value)
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the map form produced by MarshalJSON.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	h.pairs = h.pairs[:0]
	for name, vals := range m {
		for _, v := range vals {
			h.Add(name, v)
		}
	}
	return nil
}
