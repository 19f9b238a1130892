package nkey

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrCredentialsFormat reports a creds file missing its JWT or
	// seed block.
	ErrCredentialsFormat = errors.New("invalid credentials format")
)

const (
	jwtBegin  = "-----BEGIN NATS USER JWT-----"
	jwtEnd    = "-----END NATS USER JWT-----"
	seedBegin = "-----BEGIN USER NKEY SEED-----"
	seedEnd   = "-----END USER NKEY SEED-----"
)

// Credentials is the decoded content of a NATS .creds file.
type Credentials struct {
	JWT  string
	Seed string
}

// ParseCredentials extracts the JWT and seed blocks from creds file
// content. Block order does not matter; both values are trimmed.
func ParseCredentials(content string) (*Credentials, error) {
	jwt, err := extractBlock(content, jwtBegin, jwtEnd)
	if err != nil {
		return nil, err
	}
	seed, err := extractBlock(content, seedBegin, seedEnd)
	if err != nil {
		return nil, err
	}
	return &Credentials{JWT: jwt, Seed: seed}, nil
}

// LoadCredentials reads and parses a creds file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}
	creds, err := ParseCredentials(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return creds, nil
}

// KeyPair derives the Ed25519 key pair from the seed block.
func (c *Credentials) KeyPair() (*KeyPair, error) {
	return FromSeed(c.Seed)
}

func extractBlock(content, begin, end string) (string, error) {
	start := strings.Index(content, begin)
	if start < 0 {
		return "", fmt.Errorf("%w: missing %s", ErrCredentialsFormat, begin)
	}
	rest := content[start+len(begin):]
	stop := strings.Index(rest, end)
	if stop < 0 {
		return "", fmt.Errorf("%w: missing %s", ErrCredentialsFormat, end)
	}
	// Markers padded with extra dashes still contain the canonical
	// text; the surplus dashes next to them are not part of the value.
	value := strings.TrimSpace(strings.TrimRight(strings.TrimLeft(rest[:stop], "-"), "-"))
	if value == "" {
		return "", fmt.Errorf("%w: empty block before %s", ErrCredentialsFormat, end)
	}
	return value, nil
}
