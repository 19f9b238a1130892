package gonats

import (
	"context"
	"sync/atomic"

	"github.com/gftdcojp/gonats/subject"
)

// Subscription is one server-side subscription. Messages arrive on
// the channel returned by Messages; the channel closes when the
// subscription finishes (Unsubscribe, auto-unsubscribe limit, or
// client shutdown).
type Subscription struct {
	c *Client

	sid     string
	subject string
	queue   string
	ch      chan *Msg

	closed atomic.Bool
}

// Subscribe registers interest in subj and returns the subscription.
func (c *Client) Subscribe(subj string) (*Subscription, error) {
	return c.subscribe(subj, "")
}

// QueueSubscribe registers interest in subj as a member of the queue
// group; the server delivers each message to exactly one member.
func (c *Client) QueueSubscribe(subj, queue string) (*Subscription, error) {
	if err := subject.ValidateQueue(queue); err != nil {
		return nil, err
	}
	return c.subscribe(subj, queue)
}

func (c *Client) subscribe(subj, queue string) (*Subscription, error) {
	if err := subject.ValidateSubscribe(subj); err != nil {
		return nil, err
	}
	if err := c.opError(); err != nil {
		return nil, err
	}

	ch := make(chan *Msg, subChanBuffer)
	sid := c.mux.NextSID()

	c.mu.Lock()
	if c.enc == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.mux.Register(sid, subj, queue, ch)
	if err := c.enc.Sub(subj, queue, sid); err != nil {
		c.mu.Unlock()
		c.mux.Unregister(sid)
		return nil, err
	}
	if err := c.bw.Flush(); err != nil {
		c.mu.Unlock()
		c.mux.Unregister(sid)
		return nil, err
	}
	c.mu.Unlock()

	return &Subscription{c: c, sid: sid, subject: subj, queue: queue, ch: ch}, nil
}

// Subject returns the subscription's subject pattern.
func (s *Subscription) Subject() string { return s.subject }

// Queue returns the queue group, or "".
func (s *Subscription) Queue() string { return s.queue }

// Messages returns the delivery channel. It closes when the
// subscription finishes.
func (s *Subscription) Messages() <-chan *Msg { return s.ch }

// NextMsg waits for one message or the context's end.
func (s *Subscription) NextMsg(ctx context.Context) (*Msg, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, ErrSubscriptionClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe removes interest at the server and finishes the
// delivery channel. In-flight messages arriving within the drain
// window are dropped silently.
func (s *Subscription) Unsubscribe() error {
	if s.closed.Swap(true) {
		return ErrSubscriptionClosed
	}

	c := s.c
	c.mu.Lock()
	if c.enc != nil {
		c.enc.Unsub(s.sid, 0)
		c.bw.Flush()
	}
	c.mu.Unlock()

	c.mux.Unregister(s.sid)
	return nil
}

// AutoUnsubscribe asks the server to stop after max more-or-already
// delivered messages and finishes the channel locally once the limit
// is reached.
func (s *Subscription) AutoUnsubscribe(max int) error {
	if max <= 0 {
		return s.Unsubscribe()
	}
	if s.closed.Load() {
		return ErrSubscriptionClosed
	}

	c := s.c
	c.mu.Lock()
	if c.enc == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if err := c.enc.Unsub(s.sid, max); err != nil {
		c.mu.Unlock()
		return err
	}
	err := c.bw.Flush()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.mux.SetAutoUnsubscribe(s.sid, uint64(max))
	return nil
}
