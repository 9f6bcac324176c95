package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/tashakor/supportbot/internal/reliability"
)

// sheetsMirror pushes rows to a remote Google Sheet with best-effort
// semantics: a mirror failure never affects the primary append result.
type sheetsMirror struct {
	sheetID         string
	credentialsFile string

	once sync.Once
	svc  *sheets.Service
	err  error
}

func newSheetsMirror(sheetID, credentialsFile string) *sheetsMirror {
	return &sheetsMirror{
		sheetID:         sheetID,
		credentialsFile: credentialsFile,
	}
}

func (m *sheetsMirror) service(ctx context.Context) (*sheets.Service, error) {
	m.once.Do(func() {
		if _, err := os.Stat(m.credentialsFile); err != nil {
			m.err = fmt.Errorf("credentials file %s: %w", m.credentialsFile, err)
			return
		}
		m.svc, m.err = sheets.NewService(ctx,
			option.WithCredentialsFile(m.credentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
	})
	return m.svc, m.err
}

func (m *sheetsMirror) appendRow(row []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc, err := m.service(ctx)
	if err != nil {
		return err
	}

	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}

	for attempt := 0; ; attempt++ {
		_, err = svc.Spreadsheets.Values.Append(m.sheetID, "A1", &sheets.ValueRange{
			Values: [][]any{values},
		}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err == nil {
			return nil
		}
		if attempt >= 2 || !retryableSheetsError(err) {
			return fmt.Errorf("append to sheet %s: %w", m.sheetID, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("append to sheet %s: %w", m.sheetID, ctx.Err())
		case <-time.After(reliability.ExponentialBackoff(attempt, 500*time.Millisecond, 4*time.Second)):
		}
	}
}

func retryableSheetsError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return reliability.IsRetryableHTTPStatus(apiErr.Code)
	}
	// Transport-level failures never produced a status code.
	return true
}
