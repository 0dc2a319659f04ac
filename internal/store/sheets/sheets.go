// Package sheets implements store.Table on top of a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/fyrsmithlabs/wardlog/internal/logging"
)

const (
	valueInputRaw  = "RAW"
	insertDataRows = "INSERT_ROWS"
)

var (
	// ErrNoSheetKey is returned by Open without a spreadsheet key.
	ErrNoSheetKey = errors.New("sheets: spreadsheet key is required")

	// ErrNoWorksheet means the spreadsheet has no worksheets to append to.
	ErrNoWorksheet = errors.New("sheets: spreadsheet has no worksheets")
)

// Options configures Open.
type Options struct {
	SheetKey string

	// Credentials supplies service account JSON. When nil, ClientOptions
	// must carry authentication.
	Credentials CredentialSource

	// ClientOptions are passed to the Sheets service after credentials.
	ClientOptions []option.ClientOption

	// RequestTimeout bounds each API call. Zero means no bound beyond ctx.
	// A timed-out append may still have been written by Google, so a
	// failure reply can follow a saved row.
	RequestTimeout time.Duration

	Logger *logging.Logger
}

// Table appends rows to the first worksheet of one spreadsheet.
type Table struct {
	svc      *sheetsapi.Service
	key      string
	title    string
	appendTo string
	timeout  time.Duration
	logger   *logging.Logger
}

// Open authenticates, opens the spreadsheet and resolves its first worksheet.
func Open(ctx context.Context, opts Options) (*Table, error) {
	if opts.SheetKey == "" {
		return nil, ErrNoSheetKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("sheets")

	var clientOpts []option.ClientOption
	if opts.Credentials != nil {
		data, src, err := resolve(ctx, opts.Credentials)
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		ts, email, err := tokenSource(ctx, data)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "using service account",
			zap.String("source", src.Name()),
			zap.String("client_email", email))
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	ss, err := svc.Spreadsheets.Get(opts.SheetKey).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, ErrNoWorksheet
	}
	title := ss.Sheets[0].Properties.Title

	logger.Info(ctx, "spreadsheet opened", zap.String("worksheet", title))

	return &Table{
		svc:      svc,
		key:      opts.SheetKey,
		title:    title,
		appendTo: a1Range(title),
		timeout:  opts.RequestTimeout,
		logger:   logger,
	}, nil
}

// resolve loads credentials, reporting which chain member supplied them.
func resolve(ctx context.Context, src CredentialSource) ([]byte, CredentialSource, error) {
	if chain, ok := src.(Chain); ok {
		return chain.Resolve(ctx)
	}
	data, err := src.Load(ctx)
	return data, src, err
}

// Worksheet returns the title of the worksheet rows are appended to.
func (t *Table) Worksheet() string {
	return t.title
}

// AppendRow implements store.Table.
func (t *Table) AppendRow(ctx context.Context, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	_, err := t.svc.Spreadsheets.Values.Append(t.key, t.appendTo, &sheetsapi.ValueRange{
		Values: [][]interface{}{values},
	}).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertDataRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}

// a1Range anchors an append at the top-left of the named worksheet.
func a1Range(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}
