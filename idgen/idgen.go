// CLAUDE:SUMMARY Pluggable ID generators (UUIDv7 default) with type-scoped prefixes for drafts, records and events.
// Package idgen generates identifiers for editor drafts, persisted records and
// business events.
//
// Constructors across the module accept a Generator so tests can inject a
// deterministic sequence.
package idgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// Prefixes used by the service.
const (
	DraftPrefix  = "drf_"
	RecordPrefix = "rec_"
	EventPrefix  = "evt_"
)

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so records listed by id come back in creation order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Short returns a Generator of n random lowercase hex characters (at most 32)
// for disambiguating names that are not ids themselves.
func Short(n int) Generator {
	n = min(max(n, 1), 32)
	return func() string {
		u := uuid.New()
		return hex.EncodeToString(u[:])[:n]
	}
}

// Sequence returns a Generator yielding prefix1, prefix2, ... Meant for tests.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
