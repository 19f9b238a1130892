package jetstream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gonats "github.com/gftdcojp/gonats"
	"github.com/gftdcojp/gonats/header"
)

// Consumer is a handle to one pull consumer.
type Consumer struct {
	js     *Context
	stream string
	name   string
}

// CreateConsumer creates (or idempotently re-creates) a consumer on
// stream and returns a handle to it.
func (js *Context) CreateConsumer(ctx context.Context, stream string, cfg ConsumerConfig) (*Consumer, error) {
	if err := checkStreamName(stream); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Durable
	}
	if name != "" && !validName(name) {
		return nil, ErrInvalidConsumerName
	}
	if cfg.DeliverPolicy == "" {
		cfg.DeliverPolicy = DeliverAll
	}
	if cfg.AckPolicy == "" {
		cfg.AckPolicy = AckExplicit
	}
	if cfg.ReplayPolicy == "" {
		cfg.ReplayPolicy = ReplayInstant
	}

	req := struct {
		Stream string         `json:"stream_name"`
		Config ConsumerConfig `json:"config"`
	}{Stream: stream, Config: cfg}

	subj := js.apiSubject("CONSUMER", "CREATE", stream)
	if name != "" {
		subj = js.apiSubject("CONSUMER", "CREATE", stream, name)
	}

	var resp struct {
		apiResponse
		ConsumerInfo
	}
	if err := js.request(ctx, subj, &req, &resp); err != nil {
		return nil, err
	}
	return &Consumer{js: js, stream: stream, name: resp.ConsumerInfo.Name}, nil
}

// Consumer returns a handle after confirming the consumer exists.
func (js *Context) Consumer(ctx context.Context, stream, name string) (*Consumer, error) {
	info, err := js.ConsumerInfo(ctx, stream, name)
	if err != nil {
		return nil, err
	}
	return &Consumer{js: js, stream: stream, name: info.Name}, nil
}

// ConsumerInfo fetches a consumer's current state.
func (js *Context) ConsumerInfo(ctx context.Context, stream, name string) (*ConsumerInfo, error) {
	if err := checkStreamName(stream); err != nil {
		return nil, err
	}
	if err := checkConsumerName(name); err != nil {
		return nil, err
	}
	var resp struct {
		apiResponse
		ConsumerInfo
	}
	if err := js.request(ctx, js.apiSubject("CONSUMER", "INFO", stream, name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.ConsumerInfo, nil
}

// DeleteConsumer removes a consumer.
func (js *Context) DeleteConsumer(ctx context.Context, stream, name string) error {
	if err := checkStreamName(stream); err != nil {
		return err
	}
	if err := checkConsumerName(name); err != nil {
		return err
	}
	var resp struct {
		apiResponse
		Success bool `json:"success"`
	}
	return js.request(ctx, js.apiSubject("CONSUMER", "DELETE", stream, name), nil, &resp)
}

// Name returns the consumer's name.
func (c *Consumer) Name() string { return c.name }

// Stream returns the owning stream's name.
func (c *Consumer) Stream() string { return c.stream }

// Info fetches the consumer's current state.
func (c *Consumer) Info(ctx context.Context) (*ConsumerInfo, error) {
	return c.js.ConsumerInfo(ctx, c.stream, c.name)
}

// Fetch pulls up to batch messages, waiting at most maxWait for the
// server to fill the batch. It returns what it collected when the
// batch fills, the wait expires, or the server reports a terminal
// status (404 no messages, 408 request expired, or any other status
// >= 400). Delivered frames whose reply subject is not a JetStream
// ack subject are skipped.
func (c *Consumer) Fetch(ctx context.Context, batch int, maxWait time.Duration) ([]*Msg, error) {
	if batch <= 0 {
		batch = 1
	}
	if maxWait <= 0 {
		maxWait = DefaultRequestTimeout
	}

	inbox := c.js.nc.NewInbox()
	sub, err := c.js.nc.Subscribe(inbox)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	req := nextRequest{Batch: batch, Expires: maxWait.Nanoseconds()}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	subj := c.js.apiSubject("CONSUMER", "MSG", "NEXT", c.stream, c.name)
	if err := c.js.nc.PublishWithReply(subj, inbox, body); err != nil {
		return nil, err
	}

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	msgs := make([]*Msg, 0, batch)
	for len(msgs) < batch {
		var raw *gonats.Msg
		select {
		case <-ctx.Done():
			return msgs, ctx.Err()
		case <-deadline.C:
			return msgs, nil
		case m, ok := <-sub.Messages():
			if !ok {
				return msgs, nil
			}
			raw = m
		}

		if raw.Headers != nil && raw.Headers.Status() != 0 {
			status := raw.Headers.Status()
			if status == header.StatusNoMessages || status == header.StatusTimeout || status >= 400 {
				return msgs, nil
			}
			continue
		}

		msg, err := newJetStreamMsg(c.js.nc, raw)
		if err != nil {
			// Not a JetStream delivery; skip silently.
			if errors.Is(err, ErrInvalidAck) {
				continue
			}
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func checkConsumerName(name string) error {
	if name == "" {
		return ErrConsumerNameRequired
	}
	if !validName(name) {
		return ErrInvalidConsumerName
	}
	return nil
}
