// Package subject implements NATS subject validation, wildcard
// matching, and inbox generation.
package subject

import (
	"fmt"
	"strings"

	"github.com/nats-io/nuid"
)

// MaxLength is the longest subject the client will accept.
const MaxLength = 256

const (
	tokenSeparator    = "."
	wildcardToken     = "*"
	fullWildcardToken = ">"
)

// DefaultInboxPrefix is the reserved prefix for reply subjects.
const DefaultInboxPrefix = "_INBOX"

// ErrInvalidSubject reports a subject that violates the syntax rules.
type ErrInvalidSubject struct {
	Subject string
	Reason  string
}

func (e *ErrInvalidSubject) Error() string {
	return fmt.Sprintf("invalid subject %q: %s", e.Subject, e.Reason)
}

// ErrInvalidQueueGroup reports a malformed queue group name.
type ErrInvalidQueueGroup struct {
	Name string
}

func (e *ErrInvalidQueueGroup) Error() string {
	return fmt.Sprintf("invalid queue group %q", e.Name)
}

func validateTokens(subject string, allowWildcards bool) error {
	if subject == "" {
		return &ErrInvalidSubject{Subject: subject, Reason: "empty"}
	}
	if len(subject) > MaxLength {
		return &ErrInvalidSubject{Subject: subject, Reason: fmt.Sprintf("longer than %d characters", MaxLength)}
	}
	if strings.ContainsAny(subject, " \t\r\n") {
		return &ErrInvalidSubject{Subject: subject, Reason: "contains whitespace"}
	}

	tokens := strings.Split(subject, tokenSeparator)
	for i, tok := range tokens {
		if tok == "" {
			return &ErrInvalidSubject{Subject: subject, Reason: "empty token"}
		}
		switch tok {
		case wildcardToken:
			if !allowWildcards {
				return &ErrInvalidSubject{Subject: subject, Reason: "wildcard not allowed"}
			}
		case fullWildcardToken:
			if !allowWildcards {
				return &ErrInvalidSubject{Subject: subject, Reason: "wildcard not allowed"}
			}
			if i != len(tokens)-1 {
				return &ErrInvalidSubject{Subject: subject, Reason: "'>' must be the last token"}
			}
		default:
			// Wildcard characters embedded in a token, e.g. "foo*"
			// or "foo>", are never valid.
			if strings.ContainsAny(tok, "*>") {
				return &ErrInvalidSubject{Subject: subject, Reason: "wildcard must be a complete token"}
			}
		}
	}
	return nil
}

// ValidatePublish checks a subject for use with PUB/HPUB. Wildcards
// are rejected.
func ValidatePublish(subject string) error {
	return validateTokens(subject, false)
}

// ValidateSubscribe checks a subject for use with SUB. '*' and '>'
// are allowed as complete tokens; '>' only at the end.
func ValidateSubscribe(subject string) error {
	return validateTokens(subject, true)
}

// ValidateQueue checks a queue group name: non-empty, no whitespace.
func ValidateQueue(queue string) error {
	if queue == "" || strings.ContainsAny(queue, " \t\r\n") {
		return &ErrInvalidQueueGroup{Name: queue}
	}
	return nil
}

// Matches reports whether a concrete subject matches a subscription
// pattern. '*' matches exactly one token; '>' matches one or more
// trailing tokens.
func Matches(pattern, subject string) bool {
	pt := strings.Split(pattern, tokenSeparator)
	st := strings.Split(subject, tokenSeparator)

	for i, p := range pt {
		if p == fullWildcardToken {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != wildcardToken && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// NewInbox returns a unique reply subject under the given prefix,
// e.g. "_INBOX.4kA9vmq27vDOjkXpqi0jYr". The token is a 22-character
// NUID, so collisions are negligible.
func NewInbox(prefix string) string {
	if prefix == "" {
		prefix = DefaultInboxPrefix
	}
	return prefix + tokenSeparator + nuid.Next()
}
