package gonats

import "github.com/gftdcojp/gonats/header"

// Msg is one NATS message. Payload is a private copy sliced out of
// the read buffer at parse time; holding on to it is safe. Headers
// is nil for messages delivered without the headers extension.
type Msg struct {
	Subject string
	Reply   string
	Headers *header.Headers
	Payload []byte
}

// HasStatus reports whether the message carries the given status
// code on its header version line.
func (m *Msg) HasStatus(code int) bool {
	return m.Headers != nil && m.Headers.Status() == code
}
