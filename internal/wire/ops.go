// Package wire implements the framed text codec for the NATS client
// protocol: encoding of client operations and resumable decoding of
// server operations, including the headers extension (HPUB/HMSG).
package wire

import (
	"fmt"

	"github.com/gftdcojp/gonats/header"
)

// InvalidMessageError reports a frame the decoder could not make
// sense of: unknown command, non-numeric size, malformed header
// block, or missing payload.
type InvalidMessageError struct {
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

// ServerInfo is the decoded JSON payload of the server's INFO frame.
// It is immutable after receipt.
type ServerInfo struct {
	ServerID     string   `json:"server_id"`
	ServerName   string   `json:"server_name"`
	Version      string   `json:"version"`
	GoVersion    string   `json:"go"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	Proto        int      `json:"proto"`
	MaxPayload   int64    `json:"max_payload"`
	ClientID     uint64   `json:"client_id"`
	TLSRequired  bool     `json:"tls_required"`
	TLSAvailable bool     `json:"tls_available"`
	AuthRequired bool     `json:"auth_required"`
	Nonce        string   `json:"nonce"`
	ConnectURLs  []string `json:"connect_urls"`
	Headers      bool     `json:"headers"`
	JetStream    bool     `json:"jetstream"`
}

// ConnectInfo is the JSON payload of the client's CONNECT frame.
// Protocol 1 with headers and no_responders enabled is required for
// status-message and JetStream semantics.
type ConnectInfo struct {
	Verbose      bool   `json:"verbose"`
	Pedantic     bool   `json:"pedantic"`
	TLSRequired  bool   `json:"tls_required"`
	Echo         bool   `json:"echo"`
	Headers      bool   `json:"headers"`
	NoResponders bool   `json:"no_responders"`
	Protocol     int    `json:"protocol"`
	Name         string `json:"name,omitempty"`
	Lang         string `json:"lang,omitempty"`
	Version      string `json:"version,omitempty"`
	AuthToken    string `json:"auth_token,omitempty"`
	User         string `json:"user,omitempty"`
	Pass         string `json:"pass,omitempty"`
	NKey         string `json:"nkey,omitempty"`
	JWT          string `json:"jwt,omitempty"`
	Signature    string `json:"sig,omitempty"`
}

// ServerOp is one decoded server → client operation.
type ServerOp interface {
	serverOp()
}

// InfoOp carries the server's INFO payload.
type InfoOp struct {
	Info ServerInfo
}

// MsgOp is a delivered MSG or HMSG frame. Headers is nil for plain
// MSG frames.
type MsgOp struct {
	Subject string
	SID     string
	Reply   string
	Headers *header.Headers
	Payload []byte
}

// PingOp is an inbound PING.
type PingOp struct{}

// PongOp is an inbound PONG.
type PongOp struct{}

// OKOp is the verbose-mode +OK acknowledgement.
type OKOp struct{}

// ErrOp carries a server -ERR message with surrounding quotes
// stripped.
type ErrOp struct {
	Message string
}

func (InfoOp) serverOp() {}
func (MsgOp) serverOp()  {}
func (PingOp) serverOp() {}
func (PongOp) serverOp() {}
func (OKOp) serverOp()   {}
func (ErrOp) serverOp()  {}
