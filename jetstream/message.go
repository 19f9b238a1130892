package jetstream

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gonats "github.com/gftdcojp/gonats"
)

// MsgMetadata is the positional record carried in a JetStream
// delivery's ack subject.
type MsgMetadata struct {
	Stream       string
	Consumer     string
	Domain       string
	NumDelivered uint64
	StreamSeq    uint64
	ConsumerSeq  uint64
	Timestamp    time.Time
	NumPending   uint64
}

// Msg is one JetStream-delivered message. The underlying NATS
// message is embedded; acknowledgements publish control payloads to
// its reply subject.
type Msg struct {
	*gonats.Msg

	nc   *gonats.Client
	meta MsgMetadata

	acked bool
}

const (
	ackAck        = "+ACK"
	ackNak        = "-NAK"
	ackInProgress = "+WPI"
	ackTerm       = "+TERM"
)

// newJetStreamMsg wraps a raw delivery, parsing the ack subject.
func newJetStreamMsg(nc *gonats.Client, raw *gonats.Msg) (*Msg, error) {
	meta, err := ParseMetadata(raw.Reply)
	if err != nil {
		return nil, err
	}
	return &Msg{Msg: raw, nc: nc, meta: *meta}, nil
}

// Metadata returns the parsed ack-subject record.
func (m *Msg) Metadata() MsgMetadata {
	return m.meta
}

// Ack acknowledges successful processing.
func (m *Msg) Ack() error {
	return m.respond(ackAck, true)
}

// Nak asks for redelivery; a positive delay defers it.
func (m *Msg) Nak(delay time.Duration) error {
	if delay > 0 {
		return m.respond(fmt.Sprintf(`%s {"delay": %d}`, ackNak, delay.Nanoseconds()), true)
	}
	return m.respond(ackNak, true)
}

// InProgress resets the ack wait timer while work continues. It may
// be sent repeatedly before the final acknowledgement.
func (m *Msg) InProgress() error {
	return m.respond(ackInProgress, false)
}

// Term stops redelivery permanently.
func (m *Msg) Term() error {
	return m.respond(ackTerm, true)
}

func (m *Msg) respond(payload string, terminal bool) error {
	if m.Reply == "" {
		return fmt.Errorf("%w: no reply subject", ErrInvalidAck)
	}
	if terminal && m.acked {
		return fmt.Errorf("%w: already acknowledged", ErrInvalidAck)
	}
	if err := m.nc.Publish(m.Reply, []byte(payload)); err != nil {
		return err
	}
	if terminal {
		m.acked = true
	}
	return nil
}

// ParseMetadata decodes an ack subject of the form
//
//	$JS.ACK.<stream>.<consumer>.<delivered>.<sseq>.<cseq>.<ts>.<pending>
//
// or the domain-qualified form with <domain> and an account hash
// between ACK and the stream name. Anything else fails with
// ErrInvalidAck.
func ParseMetadata(reply string) (*MsgMetadata, error) {
	if reply == "" {
		return nil, fmt.Errorf("%w: no reply subject", ErrInvalidAck)
	}
	tokens := strings.Split(reply, ".")
	if len(tokens) < 9 || tokens[0] != "$JS" || tokens[1] != "ACK" {
		return nil, fmt.Errorf("%w: not an ack subject: %q", ErrInvalidAck, reply)
	}

	meta := &MsgMetadata{}
	base := 2
	if len(tokens) >= 12 {
		// Domain-qualified: $JS.ACK.<domain>.<account-hash>.<stream>...
		if tokens[2] != "_" {
			meta.Domain = tokens[2]
		}
		base = 4
	}
	if len(tokens) < base+7 {
		return nil, fmt.Errorf("%w: short ack subject: %q", ErrInvalidAck, reply)
	}

	meta.Stream = tokens[base]
	meta.Consumer = tokens[base+1]

	nums := make([]uint64, 5)
	for i := 0; i < 5; i++ {
		n, err := strconv.ParseUint(tokens[base+2+i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad numeric token %q", ErrInvalidAck, tokens[base+2+i])
		}
		nums[i] = n
	}
	meta.NumDelivered = nums[0]
	meta.StreamSeq = nums[1]
	meta.ConsumerSeq = nums[2]
	meta.Timestamp = time.Unix(0, int64(nums[3]))
	meta.NumPending = nums[4]
	return meta, nil
}
