package jetstream

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// Stream is a handle to one stream's admin operations.
type Stream struct {
	js   *Context
	name string
}

// CreateStream creates a stream and returns its info.
func (js *Context) CreateStream(ctx context.Context, cfg StreamConfig) (*StreamInfo, error) {
	if err := checkStreamName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Retention == "" {
		cfg.Retention = LimitsPolicy
	}
	if cfg.Storage == "" {
		cfg.Storage = FileStorage
	}
	if cfg.Replicas == 0 {
		cfg.Replicas = 1
	}

	var resp struct {
		apiResponse
		StreamInfo
	}
	if err := js.request(ctx, js.apiSubject("STREAM", "CREATE", cfg.Name), &cfg, &resp); err != nil {
		return nil, err
	}
	return &resp.StreamInfo, nil
}

// UpdateStream changes an existing stream's configuration.
func (js *Context) UpdateStream(ctx context.Context, cfg StreamConfig) (*StreamInfo, error) {
	if err := checkStreamName(cfg.Name); err != nil {
		return nil, err
	}
	var resp struct {
		apiResponse
		StreamInfo
	}
	if err := js.request(ctx, js.apiSubject("STREAM", "UPDATE", cfg.Name), &cfg, &resp); err != nil {
		return nil, err
	}
	return &resp.StreamInfo, nil
}

// DeleteStream removes a stream and all its messages.
func (js *Context) DeleteStream(ctx context.Context, name string) error {
	if err := checkStreamName(name); err != nil {
		return err
	}
	var resp struct {
		apiResponse
		Success bool `json:"success"`
	}
	return js.request(ctx, js.apiSubject("STREAM", "DELETE", name), nil, &resp)
}

// PurgeStream removes the stream's messages but keeps the stream.
func (js *Context) PurgeStream(ctx context.Context, name string) (purged uint64, err error) {
	if err := checkStreamName(name); err != nil {
		return 0, err
	}
	var resp struct {
		apiResponse
		Success bool   `json:"success"`
		Purged  uint64 `json:"purged"`
	}
	if err := js.request(ctx, js.apiSubject("STREAM", "PURGE", name), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

// StreamInfo fetches the current stream state.
func (js *Context) StreamInfo(ctx context.Context, name string) (*StreamInfo, error) {
	if err := checkStreamName(name); err != nil {
		return nil, err
	}
	var resp struct {
		apiResponse
		StreamInfo
	}
	if err := js.request(ctx, js.apiSubject("STREAM", "INFO", name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.StreamInfo, nil
}

// streamPageRequest pages STREAM.LIST and STREAM.NAMES.
type streamPageRequest struct {
	Offset int `json:"offset"`
}

// ListStreams returns the info of every stream, paging through the
// API as needed.
func (js *Context) ListStreams(ctx context.Context) ([]*StreamInfo, error) {
	var all []*StreamInfo
	offset := 0
	for {
		var resp struct {
			apiResponse
			Total   int           `json:"total"`
			Offset  int           `json:"offset"`
			Limit   int           `json:"limit"`
			Streams []*StreamInfo `json:"streams"`
		}
		req := streamPageRequest{Offset: offset}
		if err := js.request(ctx, js.apiSubject("STREAM", "LIST"), &req, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Streams...)
		offset += len(resp.Streams)
		if len(resp.Streams) == 0 || offset >= resp.Total {
			return all, nil
		}
	}
}

// StreamNames returns every stream name.
func (js *Context) StreamNames(ctx context.Context) ([]string, error) {
	var all []string
	offset := 0
	for {
		var resp struct {
			apiResponse
			Total   int      `json:"total"`
			Offset  int      `json:"offset"`
			Limit   int      `json:"limit"`
			Streams []string `json:"streams"`
		}
		req := streamPageRequest{Offset: offset}
		if err := js.request(ctx, js.apiSubject("STREAM", "NAMES"), &req, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Streams...)
		offset += len(resp.Streams)
		if len(resp.Streams) == 0 || offset >= resp.Total {
			return all, nil
		}
	}
}

// RawStreamMsg is one message fetched directly from a stream.
type RawStreamMsg struct {
	Subject  string
	Sequence uint64
	Data     []byte
	Time     time.Time
}

// GetMsg fetches a message by stream sequence.
func (js *Context) GetMsg(ctx context.Context, stream string, seq uint64) (*RawStreamMsg, error) {
	if err := checkStreamName(stream); err != nil {
		return nil, err
	}
	req := struct {
		Seq uint64 `json:"seq"`
	}{Seq: seq}
	var resp struct {
		apiResponse
		Message *struct {
			Subject string    `json:"subject"`
			Seq     uint64    `json:"seq"`
			Data    string    `json:"data"`
			Time    time.Time `json:"time"`
		} `json:"message"`
	}
	if err := js.request(ctx, js.apiSubject("STREAM", "MSG", "GET", stream), &req, &resp); err != nil {
		return nil, err
	}
	if resp.Message == nil {
		return nil, ErrMsgNotFound
	}
	data, err := base64.StdEncoding.DecodeString(resp.Message.Data)
	if err != nil {
		return nil, fmt.Errorf("jetstream: decoding message data: %w", err)
	}
	return &RawStreamMsg{
		Subject:  resp.Message.Subject,
		Sequence: resp.Message.Seq,
		Data:     data,
		Time:     resp.Message.Time,
	}, nil
}

// DeleteMsg erases a message by stream sequence.
func (js *Context) DeleteMsg(ctx context.Context, stream string, seq uint64) error {
	if err := checkStreamName(stream); err != nil {
		return err
	}
	req := struct {
		Seq uint64 `json:"seq"`
	}{Seq: seq}
	var resp struct {
		apiResponse
		Success bool `json:"success"`
	}
	return js.request(ctx, js.apiSubject("STREAM", "MSG", "DELETE", stream), &req, &resp)
}

// Stream returns a handle after confirming the stream exists.
func (js *Context) Stream(ctx context.Context, name string) (*Stream, error) {
	if _, err := js.StreamInfo(ctx, name); err != nil {
		return nil, err
	}
	return &Stream{js: js, name: name}, nil
}

// Name returns the stream's name.
func (s *Stream) Name() string { return s.name }

// Info fetches the stream's current state.
func (s *Stream) Info(ctx context.Context) (*StreamInfo, error) {
	return s.js.StreamInfo(ctx, s.name)
}

// Purge removes the stream's messages.
func (s *Stream) Purge(ctx context.Context) (uint64, error) {
	return s.js.PurgeStream(ctx, s.name)
}

func checkStreamName(name string) error {
	if name == "" {
		return ErrStreamNameRequired
	}
	if !validName(name) {
		return ErrInvalidStreamName
	}
	return nil
}
