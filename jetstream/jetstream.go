package jetstream

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gonats "github.com/gftdcojp/gonats"
	"github.com/gftdcojp/gonats/header"
)

// DefaultAPIPrefix is the subject root of the JetStream API.
const DefaultAPIPrefix = "$JS.API"

// DefaultRequestTimeout bounds each API request.
const DefaultRequestTimeout = 5 * time.Second

// Context issues JetStream API requests over a client connection.
type Context struct {
	nc      *gonats.Client
	prefix  string
	timeout time.Duration
}

// ContextOption adjusts a Context.
type ContextOption func(*Context)

// WithAPIPrefix changes the API subject root, e.g. for an imported
// JetStream domain ("$JS.<domain>.API").
func WithAPIPrefix(prefix string) ContextOption {
	return func(js *Context) {
		js.prefix = strings.TrimSuffix(prefix, ".")
	}
}

// WithRequestTimeout changes the per-request deadline.
func WithRequestTimeout(d time.Duration) ContextOption {
	return func(js *Context) {
		js.timeout = d
	}
}

// New returns a JetStream context over nc.
func New(nc *gonats.Client, opts ...ContextOption) *Context {
	js := &Context{
		nc:      nc,
		prefix:  DefaultAPIPrefix,
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(js)
	}
	return js
}

// AccountInfo probes the API root; it doubles as the "is JetStream
// enabled" check.
func (js *Context) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var resp struct {
		apiResponse
		AccountInfo
	}
	if err := js.request(ctx, js.apiSubject("INFO"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.AccountInfo, nil
}

func (js *Context) apiSubject(parts ...string) string {
	return js.prefix + "." + strings.Join(parts, ".")
}

// request performs one API round trip: publish the JSON body to the
// subject, then triage the reply in order — no-responders status,
// embedded API error object, typed decode.
func (js *Context) request(ctx context.Context, subj string, req, resp any) error {
	var payload []byte
	if req != nil {
		var err error
		payload, err = json.Marshal(req)
		if err != nil {
			return err
		}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, js.timeout)
		defer cancel()
	}

	msg, err := js.nc.Request(ctx, subj, payload)
	if err != nil {
		var noResp *gonats.NoRespondersError
		if errors.As(err, &noResp) {
			return ErrNotEnabled
		}
		return err
	}
	if msg.HasStatus(header.StatusNoResponders) {
		return ErrNotEnabled
	}

	var envelope apiResponse
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return err
	}
	if envelope.Error != nil {
		return &APIError{
			Code:        envelope.Error.Code,
			ErrCode:     envelope.Error.ErrCode,
			Description: envelope.Error.Description,
		}
	}
	if resp != nil {
		return json.Unmarshal(msg.Payload, resp)
	}
	return nil
}

// validName rejects names that would break the API subject layout.
func validName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, ".*> \t\r\n")
}
