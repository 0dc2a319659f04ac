package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/wardlog/internal/record"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "all fields present",
			text: "#HN1001\nName: Jane Doe\nAge: 34\nDx: Flu\nNotes: stable",
			want: []string{"#HN1001", "Jane Doe", "34", "Flu", "stable"},
		},
		{
			name: "missing age and notes",
			text: "#HN1002\nName: John\nDx: Cold",
			want: []string{"#HN1002", "John", "", "Cold", ""},
		},
		{
			name: "code only",
			text: "#HN7",
			want: []string{"#HN7", "", "", "", ""},
		},
		{
			name: "marker without digits yields empty code",
			text: "#HNabc\nName: Ann",
			want: []string{"", "Ann", "", "", ""},
		},
		{
			name: "code not at start is ignored",
			text: "note #HN1234\nName: Ann",
			want: []string{"", "Ann", "", "", ""},
		},
		{
			name: "code stops at first non digit",
			text: "#HN12ab",
			want: []string{"#HN12", "", "", "", ""},
		},
		{
			name: "age captures digits only",
			text: "#HN1\nAge: 42 years",
			want: []string{"#HN1", "", "42", "", ""},
		},
		{
			name: "age without digits is empty",
			text: "#HN1\nAge: forty",
			want: []string{"#HN1", "", "", "", ""},
		},
		{
			name: "values are trimmed",
			text: "#HN1\nName:   Jane Doe   \nDx: Flu\t\r\nNotes:  ok ",
			want: []string{"#HN1", "Jane Doe", "", "Flu", "ok"},
		},
		{
			name: "non ascii digits in code and age",
			text: "#HN၁၂\nAge: ၃၄",
			want: []string{"#HN၁၂", "", "၃၄", "", ""},
		},
		{
			name: "code mixes ascii and non ascii digits",
			text: "#HN12٣٤x\nAge: ٤٢ years",
			want: []string{"#HN12٣٤", "", "٤٢", "", ""},
		},
		{
			name: "information separators are trimmed",
			text: "#HN1\nName: \x1fJane\x1f\nDx: \x1cFlu\x1d \nNotes: \u00a0ok\u3000",
			want: []string{"#HN1", "Jane", "", "Flu", "ok"},
		},
		{
			name: "labels are case sensitive",
			text: "#HN1\nname: Jane\nDX: Flu\nnotes: x\nage: 3",
			want: []string{"#HN1", "", "", "", ""},
		},
		{
			name: "label without space does not match",
			text: "#HN1\nName:Jane",
			want: []string{"#HN1", "", "", "", ""},
		},
		{
			name: "labels may appear in any order and line",
			text: "#HN5 Notes: inline\nDx: Sprain\nName: Bo",
			want: []string{"#HN5", "Bo", "", "Sprain", "inline"},
		},
		{
			name: "first occurrence wins",
			text: "#HN5\nName: First\nName: Second",
			want: []string{"#HN5", "First", "", "", ""},
		},
		{
			name: "empty label line does not borrow the next line",
			text: "#HN5\nName: \nAge: 30",
			want: []string{"#HN5", "", "30", "", ""},
		},
		{
			name: "no marker at all",
			text: "Hello there",
			want: []string{"", "", "", "", ""},
		},
		{
			name: "empty input",
			text: "",
			want: []string{"", "", "", "", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			assert.Equal(t, tt.want, got.Values())
		})
	}
}

func TestExtract_AlwaysFiveFields(t *testing.T) {
	inputs := []string{
		"#HN1",
		"#HN",
		"#HN1\n\n\n",
		"#HN99\nName: a\nAge: 1\nDx: b\nNotes: c\nExtra: d",
		"#HN1\x00Name: nul",
	}
	for _, in := range inputs {
		assert.Len(t, Extract(in).Values(), record.FieldCount, "input %q", in)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	text := "#HN1001\nName: Jane Doe\nAge: 34\nDx: Flu\nNotes: stable"
	first := Extract(text)
	second := Extract(text)
	assert.Equal(t, first, second)
}

func TestExtract_NoFieldSpansLines(t *testing.T) {
	got := Extract("#HN1\nNotes: line one\nline two")
	assert.Equal(t, "line one", got.Notes)
}

func TestHasMarker(t *testing.T) {
	assert.True(t, HasMarker("#HN1001"))
	assert.True(t, HasMarker("#HN"))
	assert.False(t, HasMarker("Hello there"))
	assert.False(t, HasMarker(" #HN1001"))
	assert.False(t, HasMarker("#hn1001"))
	assert.False(t, HasMarker(""))
}

func TestMatched(t *testing.T) {
	assert.Equal(t, []string{"code", "name", "dx"}, Matched("#HN1002\nName: John\nDx: Cold"))
	assert.Empty(t, Matched("Hello there"))
}
