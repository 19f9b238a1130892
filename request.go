package gonats

import (
	"context"
	"time"

	"github.com/nats-io/nuid"

	"github.com/gftdcojp/gonats/header"
	"github.com/gftdcojp/gonats/metrics"
	"github.com/gftdcojp/gonats/subject"
)

// Request publishes payload to subj and waits for the reply. The
// deadline is the context's, tightened to the configured request
// timeout when the context carries none. A server-reported lack of
// responders surfaces as *NoRespondersError without waiting out the
// timeout.
func (c *Client) Request(ctx context.Context, subj string, payload []byte) (*Msg, error) {
	return c.RequestMsg(ctx, &Msg{Subject: subj, Payload: payload})
}

// RequestMsg is Request carrying headers.
func (c *Client) RequestMsg(ctx context.Context, msg *Msg) (*Msg, error) {
	if err := subject.ValidatePublish(msg.Subject); err != nil {
		return nil, err
	}
	if err := c.opError(); err != nil {
		return nil, err
	}

	timeout := c.opts.RequestTimeout
	if d, ok := ctx.Deadline(); ok {
		timeout = time.Until(d)
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.ensureInbox(); err != nil {
		return nil, err
	}
	reply, slot := c.registerPending()
	if c.opts.MetricsEnabled {
		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()
	}

	if err := c.publish(msg.Subject, reply, msg.Headers, msg.Payload); err != nil {
		c.removePending(reply)
		return nil, err
	}

	select {
	case resp, ok := <-slot:
		if !ok {
			return nil, ErrConnectionClosed
		}
		if resp.HasStatus(header.StatusNoResponders) {
			return nil, &NoRespondersError{Subject: msg.Subject}
		}
		return resp, nil

	case <-ctx.Done():
		c.removePending(reply)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Operation: "request", After: timeout}
		}
		return nil, ctx.Err()

	case <-c.closeCh:
		c.removePending(reply)
		return nil, ErrConnectionClosed
	}
}

// ensureInbox lazily subscribes to the per-connection inbox wildcard
// the first time a request is made.
func (c *Client) ensureInbox() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inboxSID != "" {
		return nil
	}
	if c.enc == nil {
		return ErrNotConnected
	}

	c.inbox = subject.NewInbox(c.opts.InboxPrefix)
	c.inboxSID = c.mux.NextSID()
	if err := c.enc.Sub(c.inbox+".>", "", c.inboxSID); err != nil {
		return err
	}
	return c.bw.Flush()
}

// registerPending mints a reply subject and parks a one-shot slot
// under it.
func (c *Client) registerPending() (string, chan *Msg) {
	slot := make(chan *Msg, 1)
	c.mu.Lock()
	reply := c.inbox + "." + nuid.Next()
	c.pending[reply] = slot
	c.mu.Unlock()
	return reply, slot
}

func (c *Client) removePending(reply string) {
	c.mu.Lock()
	delete(c.pending, reply)
	c.mu.Unlock()
}
