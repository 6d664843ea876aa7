// Package idgen produces the short identifiers handed out to clients and rooms.
package idgen

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Length is the number of characters in every generated identifier.
const Length = 8

// Generator draws identifiers from a random source and retries on collision
// against whatever namespace the caller supplies.
type Generator struct {
	source func() string
}

// New returns a Generator backed by random UUIDs. The first four bytes of each
// UUID are hex encoded, giving an 8-character identifier.
func New() *Generator {
	return &Generator{source: fromUUID}
}

// NewWithSource returns a Generator that takes raw identifiers from source.
// Tests use it to force collisions.
func NewWithSource(source func() string) *Generator {
	if source == nil {
		return New()
	}
	return &Generator{source: source}
}

// Next returns an identifier for which taken reports false. The caller must
// hold whatever lock guards the namespace taken inspects, so the identifier is
// still free when it is stored.
func (g *Generator) Next(taken func(id string) bool) string {
	for {
		id := g.source()
		if taken == nil || !taken(id) {
			return id
		}
	}
}

func fromUUID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:Length/2])
}
