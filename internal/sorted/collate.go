package sorted

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator compares strings by the collation rules of a locale. Case is
// significant only after base letters and accents compare equal, so "apple"
// sorts next to "Apple" rather than after "Zebra".
type Collator struct {
	mu sync.Mutex
	c  *collate.Collator
}

// NewCollator builds a collator for tag
func NewCollator(tag language.Tag) *Collator {
	return &Collator{c: collate.New(tag)}
}

// NewCollatorForLocale parses a BCP 47 locale string, falling back to the
// root collation order when the string cannot be parsed.
func NewCollatorForLocale(locale string) *Collator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return NewCollator(tag)
}

// Compare returns -1, 0 or 1. collate.Collator reuses internal buffers, so
// calls are serialized.
func (c *Collator) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.CompareString(a, b)
}
