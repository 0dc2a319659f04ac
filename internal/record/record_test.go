package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_Values(t *testing.T) {
	t.Run("keeps field order", func(t *testing.T) {
		r := Record{Code: "#HN1", Name: "Jane", Age: "34", Dx: "Flu", Notes: "stable"}
		assert.Equal(t, []string{"#HN1", "Jane", "34", "Flu", "stable"}, r.Values())
	})

	t.Run("zero record still has five values", func(t *testing.T) {
		values := Record{}.Values()
		assert.Len(t, values, FieldCount)
		for _, v := range values {
			assert.Equal(t, "", v)
		}
	})

	t.Run("headers line up with values", func(t *testing.T) {
		assert.Len(t, Headers(), FieldCount)
	})
}

func TestOutcome(t *testing.T) {
	ok := Succeeded()
	assert.True(t, ok.OK)
	assert.NoError(t, ok.Err)
	assert.Equal(t, "ok", ok.String())

	cause := errors.New("quota exceeded")
	failed := Failed(cause)
	assert.False(t, failed.OK)
	assert.ErrorIs(t, failed.Err, cause)
	assert.Equal(t, "failed: quota exceeded", failed.String())

	assert.Error(t, Failed(nil).Err)
}
