// Package search parses free-text search strings into field-scoped term sets
// and matches library entities against them.
//
// Grammar: whitespace separated tokens, each an optional "-" (negation), an
// optional "field:" prefix and a value that may be double-quoted to contain
// whitespace:
//
//	love -artist:"Bob Dylan" album:live playlist:gym title:/^intro/
//
// Terms without a field prefix go to the Any bucket and are checked against
// every field. A value written /like this/ is a case-insensitive regular
// expression. All terms must hold for an entity to match; an empty query
// matches everything.
package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Field is a searchable attribute of a song
type Field string

const (
	FieldAny      Field = "any"
	FieldTitle    Field = "title"
	FieldArtist   Field = "artist"
	FieldAlbum    Field = "album"
	FieldPlaylist Field = "playlist"
)

var knownFields = map[string]Field{
	"any":      FieldAny,
	"title":    FieldTitle,
	"artist":   FieldArtist,
	"album":    FieldAlbum,
	"playlist": FieldPlaylist,
}

// Entity is anything that can be searched. For FieldAny implementations
// return every searchable value.
type Entity interface {
	SearchValues(field Field) []string
}

// Term is a single parsed search term
type Term struct {
	Field    Field
	Negative bool
	Value    string

	pattern *regexp.Regexp
}

// Query is a parsed search string. It is immutable and safe for concurrent use.
type Query struct {
	raw   string
	terms []Term
}

// Parse never fails: malformed input degrades to literal substring terms.
func Parse(raw string) *Query {
	q := &Query{raw: strings.TrimSpace(raw)}
	for _, tok := range tokenize(q.raw) {
		if term, ok := parseToken(tok); ok {
			q.terms = append(q.terms, term)
		}
	}
	return q
}

// String returns the trimmed source of the query
func (q *Query) String() string { return q.raw }

// Empty reports whether the query has no terms
func (q *Query) Empty() bool { return len(q.terms) == 0 }

// Terms returns a copy of the parsed terms in input order
func (q *Query) Terms() []Term {
	out := make([]Term, len(q.terms))
	copy(out, q.terms)
	return out
}

// Matches reports whether e satisfies every term of q.
func (q *Query) Matches(e Entity) bool {
	for _, term := range q.terms {
		if term.matchesAny(e.SearchValues(term.Field)) == term.Negative {
			return false
		}
	}
	return true
}

func (t Term) matchesAny(values []string) bool {
	for _, v := range values {
		if t.pattern != nil {
			if t.pattern.MatchString(v) {
				return true
			}
			continue
		}
		if strings.Contains(fold(v), t.Value) {
			return true
		}
	}
	return false
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// tokenize splits on whitespace outside double quotes. Quotes are kept so
// parseToken can tell `artist:"a b"` from `artist:a`.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func parseToken(tok string) (Term, bool) {
	term := Term{Field: FieldAny}
	if strings.HasPrefix(tok, "-") {
		term.Negative = true
		tok = tok[1:]
	}

	if i := strings.IndexByte(tok, ':'); i > 0 && !strings.HasPrefix(tok, `"`) {
		if f, ok := knownFields[strings.ToLower(tok[:i])]; ok {
			term.Field = f
			tok = tok[i+1:]
		}
	}

	value := strings.TrimPrefix(tok, `"`)
	value = strings.TrimSuffix(value, `"`)
	value = strings.TrimSpace(value)
	if value == "" {
		return Term{}, false
	}

	if len(value) > 2 && strings.HasPrefix(value, "/") && strings.HasSuffix(value, "/") {
		if re, err := regexp.Compile("(?i)" + value[1:len(value)-1]); err == nil {
			term.pattern = re
		}
	}
	term.Value = fold(value)
	return term, true
}
