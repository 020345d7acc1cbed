package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Kind is the category of cached AI output. It selects both the key
// namespace and the TTL policy.
type Kind string

const (
	// KindAnalysis caches image-analysis text, keyed by raw image bytes.
	KindAnalysis Kind = "analysis"

	// KindGeneration caches generated-image URLs, keyed by prompt text.
	KindGeneration Kind = "generation"
)

// keyPrefix versions the key namespace so the format can change across
// deployments without colliding with old entries.
const keyPrefix = "visioncache:v1"

var (
	// ErrEmptyInput indicates the input to fingerprint was empty.
	ErrEmptyInput = errors.New("empty input")

	// ErrUnknownKind indicates an unrecognized cache kind.
	ErrUnknownKind = errors.New("unknown cache kind")
)

// Valid reports whether k is a known cache kind.
func (k Kind) Valid() bool {
	return k == KindAnalysis || k == KindGeneration
}

// Fingerprint computes the deterministic cache key for an input.
// Identical input always yields an identical key; different kinds never
// collide even for identical input, since the kind is part of the key
// namespace.
//
// Format: visioncache:v1:<kind>:<sha256 hex>
func Fingerprint(kind Kind, input []byte) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(input) == 0 {
		return "", ErrEmptyInput
	}

	sum := sha256.Sum256(input)
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, hex.EncodeToString(sum[:])), nil
}

// FingerprintPrompt computes the generation key for a prompt. The prompt is
// normalized by trimming surrounding whitespace; case is preserved.
func FingerprintPrompt(prompt string) (string, error) {
	normalized := strings.TrimSpace(prompt)
	if normalized == "" {
		return "", ErrEmptyInput
	}
	return Fingerprint(KindGeneration, []byte(normalized))
}
