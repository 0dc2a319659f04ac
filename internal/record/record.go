// Package record defines the patient log record and the outcome of storing it.
package record

import "fmt"

// FieldCount is the number of values every Record produces.
const FieldCount = 5

// Record is one structured patient log entry.
// Unmatched fields are empty strings.
type Record struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Age   string `json:"age"`
	Dx    string `json:"dx"`
	Notes string `json:"notes"`
}

// Values returns the fields in row order: code, name, age, dx, notes.
func (r Record) Values() []string {
	return []string{r.Code, r.Name, r.Age, r.Dx, r.Notes}
}

// Headers returns the column names matching Values.
func Headers() []string {
	return []string{"code", "name", "age", "dx", "notes"}
}

// Outcome is the result of appending a Record to the store.
type Outcome struct {
	OK  bool
	Err error
}

// Succeeded returns a positive outcome.
func Succeeded() Outcome {
	return Outcome{OK: true}
}

// Failed returns a negative outcome carrying cause.
func Failed(cause error) Outcome {
	if cause == nil {
		cause = fmt.Errorf("append failed")
	}
	return Outcome{Err: cause}
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o.OK {
		return "ok"
	}
	if o.Err != nil {
		return "failed: " + o.Err.Error()
	}
	return "failed"
}
