package gonats

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// serverURL is one parsed entry of the server list. Credentials from
// the user-info part are held separately and never re-join the
// stored or logged form.
type serverURL struct {
	host string
	port string
	tls  bool

	user  string
	pass  string
	token string
}

const defaultPort = "4222"

// parseServerURL accepts nats, tls, nats+tls, and wss schemes. A
// bare "host:port" is treated as nats://.
func parseServerURL(raw string) (*serverURL, error) {
	s := raw
	if !strings.Contains(s, "://") {
		s = "nats://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}

	var useTLS bool
	switch u.Scheme {
	case "nats":
	case "tls", "nats+tls", "wss":
		useTLS = true
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidURL, raw)
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}

	su := &serverURL{host: host, port: port, tls: useTLS}
	if u.User != nil {
		if pass, ok := u.User.Password(); ok {
			su.user = u.User.Username()
			su.pass = pass
		} else {
			su.token = u.User.Username()
		}
	}
	return su, nil
}

// addr returns the dial target.
func (s *serverURL) addr() string {
	return net.JoinHostPort(s.host, s.port)
}

// String returns the sanitized form, safe for logs and display.
func (s *serverURL) String() string {
	scheme := "nats"
	if s.tls {
		scheme = "tls"
	}
	return scheme + "://" + s.addr()
}
