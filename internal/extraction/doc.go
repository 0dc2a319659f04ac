// Package extraction turns free-text patient log messages into records.
//
// A patient log message starts with a code such as "#HN1234" and carries
// labelled lines:
//
//	#HN1001
//	Name: Jane Doe
//	Age: 34
//	Dx: Flu
//	Notes: stable
//
// Extraction is a total, pure function: every label that is missing or
// malformed produces an empty field, never an error.
//
// # Matching rules
//
//   - code: "#HN" plus one or more digits, only at the very start of the text
//   - name, dx, notes: the rest of the line after "Name: ", "Dx: ", "Notes: "
//   - age: the run of digits after "Age: "
//
// Labels are case-sensitive and may appear on any line; the first occurrence
// wins. Digits may come from any script. Captured values are trimmed and
// never span lines.
//
// # Usage
//
//	if extraction.HasMarker(text) {
//	    rec := extraction.Extract(text)
//	    fmt.Println(rec.Values())
//	}
package extraction
