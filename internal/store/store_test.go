package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/record"
	"github.com/fyrsmithlabs/wardlog/internal/store/memtable"
)

type panickingTable struct{}

func (panickingTable) AppendRow(context.Context, []string) error {
	panic("nil spreadsheet service")
}

func sampleRecord() record.Record {
	return record.Record{Code: "#HN1001", Name: "Jane Doe", Age: "34", Dx: "Flu", Notes: "stable"}
}

func TestNewClient_NilTable(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.ErrorIs(t, err, ErrNilTable)
}

func TestClient_AppendSuccess(t *testing.T) {
	table := memtable.New()
	tl := logging.NewTestLogger()
	client, err := NewClient(table, tl.Logger)
	require.NoError(t, err)

	out := client.Append(context.Background(), sampleRecord())

	assert.True(t, out.OK)
	assert.NoError(t, out.Err)
	assert.Equal(t, [][]string{{"#HN1001", "Jane Doe", "34", "Flu", "stable"}}, table.Rows())
	tl.AssertLogged(t, zapcore.InfoLevel, "patient log appended")
	tl.AssertField(t, "patient log appended", "record.code", "#HN1001")
	tl.AssertNoPatientData(t, "Jane Doe", "Flu", "stable")
}

func TestClient_AppendKeepsEmptyFields(t *testing.T) {
	table := memtable.New()
	client, err := NewClient(table, nil)
	require.NoError(t, err)

	out := client.Append(context.Background(), record.Record{Code: "#HN1002", Name: "John", Dx: "Cold"})

	require.True(t, out.OK)
	rows := table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"#HN1002", "John", "", "Cold", ""}, rows[0])
}

func TestClient_AppendFailure(t *testing.T) {
	cause := errors.New("quota exceeded")
	table := memtable.New(memtable.FailWith(cause))
	tl := logging.NewTestLogger()
	client, err := NewClient(table, tl.Logger)
	require.NoError(t, err)

	out := client.Append(context.Background(), sampleRecord())

	assert.False(t, out.OK)
	assert.ErrorIs(t, out.Err, cause)
	assert.Empty(t, table.Rows())
	assert.Equal(t, 1, table.Calls())
	tl.AssertLogged(t, zapcore.ErrorLevel, "append failed")
	tl.AssertNoPatientData(t, "Jane Doe", "Flu", "stable")
}

func TestClient_AppendPanicBecomesOutcome(t *testing.T) {
	tl := logging.NewTestLogger()
	client, err := NewClient(panickingTable{}, tl.Logger)
	require.NoError(t, err)

	var out record.Outcome
	assert.NotPanics(t, func() {
		out = client.Append(context.Background(), sampleRecord())
	})

	assert.False(t, out.OK)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "nil spreadsheet service")
	tl.AssertLogged(t, zapcore.ErrorLevel, "append panicked")
}
