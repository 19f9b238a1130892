package jetstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEnabled means the API request found no responders:
	// JetStream is disabled on the server or account.
	ErrNotEnabled = errors.New("jetstream: not enabled")
	// ErrStreamNotFound reports an unknown stream name.
	ErrStreamNotFound = errors.New("jetstream: stream not found")
	// ErrConsumerNotFound reports an unknown consumer name.
	ErrConsumerNotFound = errors.New("jetstream: consumer not found")
	// ErrMsgNotFound reports a missing sequence in GetMsg.
	ErrMsgNotFound = errors.New("jetstream: message not found")
	// ErrStreamNameRequired rejects operations without a stream name.
	ErrStreamNameRequired = errors.New("jetstream: stream name is required")
	// ErrConsumerNameRequired rejects operations without a consumer
	// name.
	ErrConsumerNameRequired = errors.New("jetstream: consumer name is required")
	// ErrInvalidStreamName rejects names containing '.', '*', '>',
	// or whitespace.
	ErrInvalidStreamName = errors.New("jetstream: invalid stream name")
	// ErrInvalidConsumerName rejects consumer names the same way.
	ErrInvalidConsumerName = errors.New("jetstream: invalid consumer name")
	// ErrInvalidAck reports an un-ackable message, usually one with
	// no reply subject or a malformed ack subject.
	ErrInvalidAck = errors.New("jetstream: invalid ack")
	// ErrPublishFailed reports a status >= 400 on a publish reply.
	ErrPublishFailed = errors.New("jetstream: publish failed")
)

// API error codes this client maps to sentinels.
const (
	errCodeStreamNotFound   = 10059
	errCodeConsumerNotFound = 10014
	errCodeMsgNotFound      = 10037
)

// APIError is a structured error returned by the JetStream API.
type APIError struct {
	Code        int
	ErrCode     int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jetstream: API error %d (err_code %d): %s", e.Code, e.ErrCode, e.Description)
}

// Is maps well-known err_codes onto the sentinel errors so callers
// can use errors.Is without knowing the numeric codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrStreamNotFound:
		return e.ErrCode == errCodeStreamNotFound
	case ErrConsumerNotFound:
		return e.ErrCode == errCodeConsumerNotFound
	case ErrMsgNotFound:
		return e.ErrCode == errCodeMsgNotFound
	}
	return false
}
