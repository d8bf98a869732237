package sheets

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"

	"jdcportal/internal/config"
	"jdcportal/internal/domain/user"
)

// ErrSourceUnavailable wraps every failure to read a sector's spreadsheet.
var ErrSourceUnavailable = errors.New("spreadsheet source unavailable")

// Fetcher returns the raw cell grid of a sector's tab, header row first.
type Fetcher interface {
	FetchRows(ctx context.Context, sheet config.SectorSheet) ([][]string, error)
}

type TokenSourceProvider interface {
	TokenSource(ctx context.Context, kind user.ProcessorKind, scopes ...string) (oauth2.TokenSource, error)
}

type GoogleFetcher struct {
	creds TokenSourceProvider
}

func NewGoogleFetcher(creds TokenSourceProvider) *GoogleFetcher {
	return &GoogleFetcher{creds: creds}
}

func (f *GoogleFetcher) FetchRows(ctx context.Context, sheet config.SectorSheet) ([][]string, error) {
	ts, err := f.creds.TokenSource(ctx, user.ProcessorSheets, gsheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, sheet.Sector, err)
	}
	srv, err := gsheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, sheet.Sector, err)
	}

	vr, err := srv.Spreadsheets.Values.Get(sheet.SpreadsheetID, sheet.Tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, sheet.Sector, err)
	}

	rows := make([][]string, 0, len(vr.Values))
	for _, raw := range vr.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			if cell != nil {
				row[i] = fmt.Sprint(cell)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
