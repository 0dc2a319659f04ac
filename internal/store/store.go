// Package store appends patient log records to a tabular store.
//
// Client is the failure boundary of the write path: whatever the underlying
// Table does, including panicking, Append reports it as a record.Outcome.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/record"
)

// ErrNilTable is returned by NewClient when no table is given.
var ErrNilTable = errors.New("store: table is required")

// Table is an opened, append-only tabular destination.
// Implementations must accept concurrent AppendRow calls.
type Table interface {
	// AppendRow writes row after the last existing row, whole or not at all.
	AppendRow(ctx context.Context, row []string) error
}

// Client appends records through a pre-opened Table.
type Client struct {
	table  Table
	logger *logging.Logger
}

// NewClient creates a Client owning table.
func NewClient(table Table, logger *logging.Logger) (*Client, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		table:  table,
		logger: logger.Named("store"),
	}, nil
}

// Append writes rec as one row. It never returns an error or panics;
// failures come back as a negative Outcome carrying the cause.
func (c *Client) Append(ctx context.Context, rec record.Record) (out record.Outcome) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out = record.Failed(fmt.Errorf("table panicked: %v", r))
			c.logger.Error(ctx, "append panicked",
				zap.String("record.code", rec.Code),
				zap.Error(out.Err))
		}
	}()

	if err := c.table.AppendRow(ctx, rec.Values()); err != nil {
		c.logger.Error(ctx, "append failed",
			zap.String("record.code", rec.Code),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return record.Failed(fmt.Errorf("appending row: %w", err))
	}

	c.logger.Info(ctx, "patient log appended",
		zap.String("record.code", rec.Code),
		zap.Duration("duration", time.Since(start)))
	return record.Succeeded()
}
