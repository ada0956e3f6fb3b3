// Package ids generates opaque, lexicographically sortable decision
// identifiers: a crypto/rand token, time-prefixed so ids sort roughly by
// creation order.
package ids

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"
)

// crockford is Crockford's base32 alphabet: unambiguous, case-insensitive,
// no padding.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var encoding = base32.NewEncoding(crockford).WithPadding(base32.NoPadding)

// Generator produces decision ids. Tests substitute a deterministic
// Generator so records are reproducible.
type Generator interface {
	NewDecisionID() string
}

// ULIDGenerator is the production Generator: 48 bits of millisecond
// timestamp followed by 80 bits of crypto-random entropy, Crockford
// base32 encoded — the same shape as a ULID without importing an
// external ULID library (none appears in the retrieved pack).
type ULIDGenerator struct {
	// Now, if set, overrides time.Now (used by tests).
	Now func() time.Time
}

func (g ULIDGenerator) NewDecisionID() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ms := uint64(now().UTC().UnixMilli())

	var buf [16]byte
	buf[0] = byte(ms >> 40)
	buf[1] = byte(ms >> 32)
	buf[2] = byte(ms >> 24)
	buf[3] = byte(ms >> 16)
	buf[4] = byte(ms >> 8)
	buf[5] = byte(ms)
	if _, err := rand.Read(buf[6:]); err != nil {
		// crypto/rand.Read on a supported platform does not fail; if it
		// somehow does, fall back to an all-zero entropy tail rather than
		// panicking mid-decision.
		for i := 6; i < len(buf); i++ {
			buf[i] = 0
		}
	}
	return strings.ToLower(encoding.EncodeToString(buf[:]))
}
