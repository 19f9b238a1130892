package jetstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	gonats "github.com/gftdcojp/gonats"
	"github.com/gftdcojp/gonats/header"
)

// Headers the server interprets on JetStream publishes.
const (
	MsgIDHeader               = "Nats-Msg-Id"
	ExpectedStreamHeader      = "Nats-Expected-Stream"
	ExpectedLastMsgIDHeader   = "Nats-Expected-Last-Msg-Id"
	ExpectedLastSeqHeader     = "Nats-Expected-Last-Sequence"
	ExpectedLastSubjSeqHeader = "Nats-Expected-Last-Subject-Sequence"
)

// PublishOpt adjusts one acknowledged publish.
type PublishOpt func(*pubOpts)

type pubOpts struct {
	msgID             string
	expectStream      string
	expectLastMsgID   string
	expectLastSeq     *uint64
	expectLastSubjSeq *uint64
}

// WithMsgID attaches a deduplication ID.
func WithMsgID(id string) PublishOpt {
	return func(o *pubOpts) { o.msgID = id }
}

// WithExpectStream asserts the subject maps to the named stream.
func WithExpectStream(stream string) PublishOpt {
	return func(o *pubOpts) { o.expectStream = stream }
}

// WithExpectLastMsgID asserts the last stored message's dedup ID.
func WithExpectLastMsgID(id string) PublishOpt {
	return func(o *pubOpts) { o.expectLastMsgID = id }
}

// WithExpectLastSequence asserts the stream's last sequence.
func WithExpectLastSequence(seq uint64) PublishOpt {
	return func(o *pubOpts) { o.expectLastSeq = &seq }
}

// WithExpectLastSubjectSequence asserts the subject's last sequence.
func WithExpectLastSubjectSequence(seq uint64) PublishOpt {
	return func(o *pubOpts) { o.expectLastSubjSeq = &seq }
}

// Publish sends payload to subj and waits for the stream's PubAck.
// A reply whose headers carry a status >= 400 fails with
// ErrPublishFailed.
func (js *Context) Publish(ctx context.Context, subj string, payload []byte, opts ...PublishOpt) (*PubAck, error) {
	var po pubOpts
	for _, opt := range opts {
		opt(&po)
	}

	msg := &gonats.Msg{Subject: subj, Payload: payload}
	if hdr := po.headers(); hdr != nil {
		msg.Headers = hdr
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, js.timeout)
		defer cancel()
	}

	resp, err := js.nc.RequestMsg(ctx, msg)
	if err != nil {
		var noResp *gonats.NoRespondersError
		if errors.As(err, &noResp) {
			return nil, ErrNotEnabled
		}
		return nil, err
	}
	if resp.Headers != nil && resp.Headers.Status() >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrPublishFailed, resp.Headers.Description())
	}

	var ack struct {
		apiResponse
		PubAck
	}
	if err := json.Unmarshal(resp.Payload, &ack); err != nil {
		return nil, err
	}
	if ack.Error != nil {
		return nil, &APIError{
			Code:        ack.Error.Code,
			ErrCode:     ack.Error.ErrCode,
			Description: ack.Error.Description,
		}
	}
	return &ack.PubAck, nil
}

func (o *pubOpts) headers() *header.Headers {
	if o.msgID == "" && o.expectStream == "" && o.expectLastMsgID == "" &&
		o.expectLastSeq == nil && o.expectLastSubjSeq == nil {
		return nil
	}
	h := header.New()
	if o.msgID != "" {
		h.Set(MsgIDHeader, o.msgID)
	}
	if o.expectStream != "" {
		h.Set(ExpectedStreamHeader, o.expectStream)
	}
	if o.expectLastMsgID != "" {
		h.Set(ExpectedLastMsgIDHeader, o.expectLastMsgID)
	}
	if o.expectLastSeq != nil {
		h.Set(ExpectedLastSeqHeader, strconv.FormatUint(*o.expectLastSeq, 10))
	}
	if o.expectLastSubjSeq != nil {
		h.Set(ExpectedLastSubjSeqHeader, strconv.FormatUint(*o.expectLastSubjSeq, 10))
	}
	return h
}
