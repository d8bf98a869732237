// Package sheetsync mirrors the per-sector installation spreadsheets into the
// installations table. The spreadsheet is authoritative: rows are added or
// updated by client code and codes missing from the sheet are deleted.
package sheetsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"jdcportal/internal/config"
	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/sheets"
)

var ErrUnknownSector = errors.New("sector has no configured sheet")

type Result struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

func (r Result) Changed() bool {
	return r.Added+r.Updated+r.Deleted > 0
}

// SectorError reports a sector whose sync failed or only partially applied.
type SectorError struct {
	Sector string
	Err    error
}

func (e *SectorError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Sector, e.Err)
}

func (e *SectorError) Unwrap() error {
	return e.Err
}

// SectorOutcome serializes as the counts, or as {"error": ...} on failure.
// The error text is always one of the fixed messages of PublicMessage.
type SectorOutcome struct {
	Result
	Err error
}

func (o SectorOutcome) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(map[string]string{"error": PublicMessage(o.Err)})
	}
	return json.Marshal(o.Result)
}

// PublicMessage maps a sync failure to the text shown on the dashboard and in
// admin notifications. Store and API error details only go to the log.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownSector):
		return "Secteur non configuré"
	case errors.Is(err, sheets.ErrSourceUnavailable):
		return "Feuille Google inaccessible"
	case errors.Is(err, sheets.ErrMalformedSheet):
		return "Feuille mal formée (colonne Code client introuvable)"
	case errors.Is(err, installation.ErrStaleWrite):
		return "Installation modifiée pendant la synchronisation, réessayez"
	default:
		return "Échec de la synchronisation"
	}
}

// Notifier is the slice of the notification service used to announce results.
type Notifier interface {
	NotifySector(ctx context.Context, sector string, t notification.Type, title, message, link string) (string, error)
	NotifyAdmins(ctx context.Context, t notification.Type, title, message, link string) (string, error)
}

type Engine struct {
	fetcher  sheets.Fetcher
	repo     *installation.Repository
	sheets   []config.SectorSheet
	notifier Notifier
}

func NewEngine(fetcher sheets.Fetcher, repo *installation.Repository, sectorSheets []config.SectorSheet, notifier Notifier) *Engine {
	return &Engine{
		fetcher:  fetcher,
		repo:     repo,
		sheets:   sectorSheets,
		notifier: notifier,
	}
}

func (e *Engine) Sectors() []string {
	out := make([]string, 0, len(e.sheets))
	for _, s := range e.sheets {
		out = append(out, s.Sector)
	}
	return out
}

func (e *Engine) sheetFor(sector string) (config.SectorSheet, bool) {
	for _, s := range e.sheets {
		if strings.EqualFold(s.Sector, strings.TrimSpace(sector)) {
			return s, true
		}
	}
	return config.SectorSheet{}, false
}

// SyncSector applies one sector's sheet. On write failures the remaining rows
// are still applied and the returned Result counts what was written.
func (e *Engine) SyncSector(ctx context.Context, sector string) (Result, error) {
	sheet, ok := e.sheetFor(sector)
	if !ok {
		return Result{}, &SectorError{Sector: sector, Err: ErrUnknownSector}
	}
	sector = sheet.Sector

	rows, err := e.fetcher.FetchRows(ctx, sheet)
	if err != nil {
		return Result{}, &SectorError{Sector: sector, Err: err}
	}
	parsed, err := sheets.ParseInstallations(sector, rows)
	if err != nil {
		return Result{}, &SectorError{Sector: sector, Err: err}
	}

	existing, err := e.repo.ListBySector(ctx, sector)
	if err != nil {
		return Result{}, &SectorError{Sector: sector, Err: err}
	}
	stored := make(map[string]*installation.Installation, len(existing))
	for i := range existing {
		stored[existing[i].CodeClient] = &existing[i]
	}

	var (
		res      Result
		writeErr []error
	)
	seen := make(map[string]bool, len(parsed))
	for _, row := range lastRowWins(parsed) {
		seen[row.CodeClient] = true

		cur, found := stored[row.CodeClient]
		if !found {
			inst := row
			if err := e.repo.Create(ctx, &inst); err != nil {
				writeErr = append(writeErr, fmt.Errorf("create %s: %w", row.CodeClient, err))
				continue
			}
			res.Added++
			continue
		}

		if installation.SameBusinessFields(cur, &row) {
			continue
		}
		installation.CopyBusinessFields(cur, &row)
		if err := e.repo.Update(ctx, cur); err != nil {
			writeErr = append(writeErr, fmt.Errorf("update %s: %w", row.CodeClient, err))
			continue
		}
		res.Updated++
	}

	for code, inst := range stored {
		if seen[code] {
			continue
		}
		if err := e.repo.Delete(ctx, inst); err != nil {
			writeErr = append(writeErr, fmt.Errorf("delete %s: %w", code, err))
			continue
		}
		res.Deleted++
	}

	if len(writeErr) > 0 {
		return res, &SectorError{Sector: sector, Err: errors.Join(writeErr...)}
	}
	return res, nil
}

// lastRowWins drops earlier rows of a duplicated client code, keeping sheet order.
func lastRowWins(rows []installation.Installation) []installation.Installation {
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[r.CodeClient] = i
	}
	out := make([]installation.Installation, 0, len(last))
	for i, r := range rows {
		if last[r.CodeClient] == i {
			out = append(out, r)
		}
	}
	return out
}

// SyncAll syncs every configured sector. A failing sector never stops the others.
func (e *Engine) SyncAll(ctx context.Context) map[string]SectorOutcome {
	return e.SyncAllWithProgress(ctx, nil)
}

// SyncAllWithProgress is SyncAll calling onDone after each sector.
func (e *Engine) SyncAllWithProgress(ctx context.Context, onDone func(sector string, outcome SectorOutcome)) map[string]SectorOutcome {
	out := make(map[string]SectorOutcome, len(e.sheets))
	for _, sheet := range e.sheets {
		res, err := e.SyncSector(ctx, sheet.Sector)
		outcome := SectorOutcome{Result: res, Err: err}
		out[sheet.Sector] = outcome

		if err != nil {
			log.Printf("sheetsync sector=%s result=failed added=%d updated=%d deleted=%d err=%v",
				sheet.Sector, res.Added, res.Updated, res.Deleted, err)
		} else {
			log.Printf("sheetsync sector=%s result=ok added=%d updated=%d deleted=%d",
				sheet.Sector, res.Added, res.Updated, res.Deleted)
		}
		e.announce(ctx, sheet.Sector, outcome)

		if onDone != nil {
			onDone(sheet.Sector, outcome)
		}
	}
	return out
}

func (e *Engine) announce(ctx context.Context, sector string, o SectorOutcome) {
	if e.notifier == nil {
		return
	}

	var err error
	switch {
	case o.Err != nil:
		_, err = e.notifier.NotifyAdmins(ctx, notification.TypeError,
			"Échec synchronisation "+sector, PublicMessage(o.Err), "/installations/"+sector)
	case o.Changed():
		_, err = e.notifier.NotifySector(ctx, sector, notification.TypeInfo,
			"Synchronisation "+sector,
			fmt.Sprintf("%d ajoutée(s), %d mise(s) à jour, %d supprimée(s)", o.Added, o.Updated, o.Deleted),
			"/installations/"+sector)
	}
	if err != nil {
		log.Printf("sheetsync sector=%s notify err=%v", sector, err)
	}
}

// FailedSectors lists the sectors of outcomes that carry an error.
func FailedSectors(outcomes map[string]SectorOutcome) []string {
	var failed []string
	for sector, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, sector)
		}
	}
	sort.Strings(failed)
	return failed
}

// Task adapts the engine to a scheduler task. Any failed sector fails the run
// so the whole pass is retried on the next tick.
func (e *Engine) Task(ctx context.Context) error {
	outcomes := e.SyncAll(ctx)
	if failed := FailedSectors(outcomes); len(failed) > 0 {
		return fmt.Errorf("sync failed for sectors: %s", strings.Join(failed, ", "))
	}
	return nil
}
