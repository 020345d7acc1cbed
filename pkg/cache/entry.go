package cache

import (
	"time"
)

// TTL policy by kind. Analysis results age out daily; generated-image URLs
// stay valid as long as the media host keeps them, so they get a week.
const (
	AnalysisTTL   = 24 * time.Hour
	GenerationTTL = 7 * 24 * time.Hour
)

// Entry is a single cached AI output.
type Entry struct {
	// Key is the content fingerprint this entry was stored under.
	Key string `json:"key"`

	// Kind determines the TTL policy the entry was written with.
	Kind Kind `json:"kind"`

	// Value is the analysis text or the durable image URL.
	Value string `json:"value"`

	// CreatedAt is when the entry was written.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is CreatedAt plus the kind's TTL.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the entry has passed its expiry time.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// TTLFor returns the TTL policy for a kind, or 0 for an unknown kind.
func TTLFor(kind Kind) time.Duration {
	switch kind {
	case KindAnalysis:
		return AnalysisTTL
	case KindGeneration:
		return GenerationTTL
	default:
		return 0
	}
}
