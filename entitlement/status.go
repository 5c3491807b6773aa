package entitlement

import (
	"fmt"
	"time"
)

type kind uint8

const (
	kindUnknown kind = iota
	kindNotSubscribed
	kindSubscribed
)

// Status is the single source of truth for whether the user holds an active
// entitlement. Exactly one variant holds at a time: unknown, not subscribed,
// or subscribed with an optional expiry and a grace-period flag.
type Status struct {
	kind          kind
	expires       *time.Time
	inGracePeriod bool
}

// Unknown is the zero-knowledge status used before any determination is made.
func Unknown() Status {
	return Status{kind: kindUnknown}
}

// NotSubscribed means no active entitlement is held.
func NotSubscribed() Status {
	return Status{kind: kindNotSubscribed}
}

// Subscribed means an active entitlement is held. A nil expires denotes a
// non-expiring (lifetime) grant.
func Subscribed(expires *time.Time, inGracePeriod bool) Status {
	return Status{kind: kindSubscribed, expires: expires, inGracePeriod: inGracePeriod}
}

// IsActive reports whether the status grants access.
func (s Status) IsActive() bool {
	return s.kind == kindSubscribed
}

// IsUnknown reports whether no determination has been made yet.
func (s Status) IsUnknown() bool {
	return s.kind == kindUnknown
}

// InGracePeriod reports whether access is granted only via a billing-retry
// grace period.
func (s Status) InGracePeriod() bool {
	return s.kind == kindSubscribed && s.inGracePeriod
}

// Expiry returns when the entitlement lapses, or nil for a lifetime grant or
// a status that grants nothing.
func (s Status) Expiry() *time.Time {
	if s.kind != kindSubscribed || s.expires == nil {
		return nil
	}
	t := *s.expires
	return &t
}

func (s Status) Equal(other Status) bool {
	if s.kind != other.kind {
		return false
	}
	if s.kind != kindSubscribed {
		return true
	}
	if s.inGracePeriod != other.inGracePeriod {
		return false
	}
	if (s.expires == nil) != (other.expires == nil) {
		return false
	}
	return s.expires == nil || s.expires.Equal(*other.expires)
}

func (s Status) String() string {
	switch s.kind {
	case kindNotSubscribed:
		return "not_subscribed"
	case kindSubscribed:
		if s.expires == nil {
			return "subscribed(lifetime)"
		}
		return fmt.Sprintf("subscribed(expires=%s, grace=%t)", s.expires.Format(time.RFC3339), s.inGracePeriod)
	default:
		return "unknown"
	}
}
