package models

import (
	"fmt"
	"strings"
)

// Key is a value object encapsulating rate limit state key construction.
// It centralizes format and sanitization so user-controlled identifiers
// containing the delimiter cannot collide with adjacent buckets.
type Key struct {
	strategy   Strategy
	action     Action
	identifier string
}

// NewKey builds the state key for one (strategy, action, identifier) triple.
func NewKey(strategy Strategy, action Action, identifier string) Key {
	return Key{
		strategy:   strategy,
		action:     action,
		identifier: sanitizeKeySegment(identifier),
	}
}

// String returns the formatted key for storage lookup.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.strategy, k.action, k.identifier)
}

// sanitizeKeySegment escapes delimiter characters in key segments.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// No two distinct inputs produce the same sanitized output, so an attacker
// cannot craft an identifier like "login:admin" that lands in another
// caller's bucket.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
