package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/wardlog/internal/record"
)

// Marker is the prefix that identifies a patient log submission.
const Marker = "#HN"

// fieldPattern binds a compiled pattern to the record field it fills.
type fieldPattern struct {
	name  string
	regex *regexp.Regexp
	// group is the submatch holding the value; 0 means the whole match.
	group int
	set   func(*record.Record, string)
}

// Patterns are compiled once at package initialization.
// Without the (?m) flag ^ only matches at the start of the text.
// Digits are any Unicode decimal digit, not only ASCII.
var patterns = []fieldPattern{
	{
		name:  "code",
		regex: regexp.MustCompile(`^` + regexp.QuoteMeta(Marker) + `\p{Nd}+`),
		set:   func(r *record.Record, v string) { r.Code = v },
	},
	{
		name:  "name",
		regex: regexp.MustCompile(`Name: ([^\n]+)`),
		group: 1,
		set:   func(r *record.Record, v string) { r.Name = v },
	},
	{
		name:  "age",
		regex: regexp.MustCompile(`Age: (\p{Nd}+)`),
		group: 1,
		set:   func(r *record.Record, v string) { r.Age = v },
	},
	{
		name:  "dx",
		regex: regexp.MustCompile(`Dx: ([^\n]+)`),
		group: 1,
		set:   func(r *record.Record, v string) { r.Dx = v },
	},
	{
		name:  "notes",
		regex: regexp.MustCompile(`Notes: ([^\n]+)`),
		group: 1,
		set:   func(r *record.Record, v string) { r.Notes = v },
	},
}

// HasMarker reports whether text begins with the marker prefix.
func HasMarker(text string) bool {
	return strings.HasPrefix(text, Marker)
}

// Extract parses text into a Record. It never fails; fields whose
// pattern does not match are left empty.
func Extract(text string) record.Record {
	var rec record.Record
	for _, p := range patterns {
		m := p.regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		p.set(&rec, strings.TrimFunc(m[p.group], isTrimmable))
	}
	return rec
}

// isTrimmable reports whether r is stripped from the ends of a value:
// Unicode white space plus the ASCII separators U+001C through U+001F.
func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// Matched returns the names of the fields that matched in text.
// Used for debug logging, where field values must not appear.
func Matched(text string) []string {
	var names []string
	for _, p := range patterns {
		if p.regex.MatchString(text) {
			names = append(names, p.name)
		}
	}
	return names
}
