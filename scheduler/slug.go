package scheduler

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// slugAlphabet matches the URL-safe base64 set so slugs drop into share
// links without escaping.
const (
	slugAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"
	slugLength   = 10
)

// NewSlug generates a random public poll identifier. Uniqueness is not
// guaranteed here; the inventory service re-checks against the polls
// table and retries on collision.
func NewSlug() (string, error) {
	return gonanoid.Generate(slugAlphabet, slugLength)
}
