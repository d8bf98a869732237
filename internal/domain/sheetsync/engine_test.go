package sheetsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdcportal/internal/config"
	"jdcportal/internal/database"
	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/sheets"
)

var header = []string{"Code client", "Nom", "Ville", "Statut"}

type fakeFetcher struct {
	rows map[string][][]string
	errs map[string]error
}

func (f *fakeFetcher) FetchRows(_ context.Context, sheet config.SectorSheet) ([][]string, error) {
	if err := f.errs[sheet.Sector]; err != nil {
		return nil, err
	}
	return f.rows[sheet.Sector], nil
}

type recordedNotice struct {
	sector string
	typ    notification.Type
}

type fakeNotifier struct {
	notices       []recordedNotice
	adminMessages []string
}

func (f *fakeNotifier) NotifySector(_ context.Context, sector string, t notification.Type, _, _, _ string) (string, error) {
	f.notices = append(f.notices, recordedNotice{sector: sector, typ: t})
	return "n", nil
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, t notification.Type, _, message, _ string) (string, error) {
	f.notices = append(f.notices, recordedNotice{typ: t})
	f.adminMessages = append(f.adminMessages, message)
	return "n", nil
}

var testSheets = []config.SectorSheet{
	{Sector: "CHR", SpreadsheetID: "s1", Tab: "CHR"},
	{Sector: "HACCP", SpreadsheetID: "s2", Tab: "HACCP"},
	{Sector: "Tabac", SpreadsheetID: "s3", Tab: "Tabac"},
}

func setup(t *testing.T) (*Engine, *fakeFetcher, *installation.Repository, *fakeNotifier) {
	t.Helper()
	db, err := database.OpenInMemory("sheetsync_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&installation.Installation{}))

	repo := installation.NewRepository(db)
	fetcher := &fakeFetcher{rows: map[string][][]string{}, errs: map[string]error{}}
	notifier := &fakeNotifier{}
	return NewEngine(fetcher, repo, testSheets, notifier), fetcher, repo, notifier
}

func storedCodes(t *testing.T, repo *installation.Repository, sector string) map[string]installation.Installation {
	t.Helper()
	items, err := repo.ListBySector(context.Background(), sector)
	require.NoError(t, err)
	out := map[string]installation.Installation{}
	for _, it := range items {
		out[it.CodeClient] = it
	}
	return out
}

func TestSyncSectorMirrorsSheet(t *testing.T) {
	engine, fetcher, repo, _ := setup(t)
	ctx := context.Background()

	fetcher.rows["CHR"] = [][]string{
		header,
		{"C100", "Bar du Port", "Sète", "rendez-vous pris"},
		{"C200", "Café Central", "Lyon", ""},
		{"   ", "ignored", "", ""},
	}

	res, err := engine.SyncSector(ctx, "CHR")
	require.NoError(t, err)
	assert.Equal(t, Result{Added: 2}, res)

	got := storedCodes(t, repo, "CHR")
	require.Len(t, got, 2)
	assert.Equal(t, "Bar du Port", got["C100"].Name)
	assert.Equal(t, installation.StatusScheduled, got["C100"].Status)
	assert.Equal(t, installation.StatusToSchedule, got["C200"].Status)
	_, blank := got[""]
	assert.False(t, blank)
}

func TestSyncSectorIsIdempotent(t *testing.T) {
	engine, fetcher, _, _ := setup(t)
	ctx := context.Background()
	fetcher.rows["CHR"] = [][]string{header, {"C100", "Bar", "Sète", ""}, {"C200", "Café", "Lyon", ""}}

	_, err := engine.SyncSector(ctx, "CHR")
	require.NoError(t, err)

	res, err := engine.SyncSector(ctx, "CHR")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestSyncSectorUpdatesAndDeletes(t *testing.T) {
	engine, fetcher, repo, _ := setup(t)
	ctx := context.Background()
	fetcher.rows["CHR"] = [][]string{header, {"C100", "Bar", "Sète", ""}, {"C123", "Old", "Nîmes", ""}}
	_, err := engine.SyncSector(ctx, "CHR")
	require.NoError(t, err)

	fetcher.rows["CHR"] = [][]string{header, {"C100", "Bar", "Montpellier", "installation terminée"}}
	res, err := engine.SyncSector(ctx, "CHR")
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1, Deleted: 1}, res)

	got := storedCodes(t, repo, "CHR")
	require.Len(t, got, 1)
	assert.Equal(t, "Montpellier", got["C100"].City)
	assert.Equal(t, installation.StatusCompleted, got["C100"].Status)
	assert.Equal(t, int64(2), got["C100"].Version)
	_, stillThere := got["C123"]
	assert.False(t, stillThere)
}

func TestSyncSectorDuplicateCodesLastRowWins(t *testing.T) {
	engine, fetcher, repo, _ := setup(t)
	ctx := context.Background()
	fetcher.rows["HACCP"] = [][]string{header, {"H1", "first", "", ""}, {"H2", "other", "", ""}, {"H1", "last", "", ""}}

	res, err := engine.SyncSector(ctx, "HACCP")
	require.NoError(t, err)
	assert.Equal(t, Result{Added: 2}, res)
	assert.Equal(t, "last", storedCodes(t, repo, "HACCP")["H1"].Name)

	res, err = engine.SyncSector(ctx, "HACCP")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestSyncSectorKeepsSectorsApart(t *testing.T) {
	engine, fetcher, repo, _ := setup(t)
	ctx := context.Background()
	fetcher.rows["CHR"] = [][]string{header, {"X1", "chr", "", ""}}
	fetcher.rows["Tabac"] = [][]string{header, {"X1", "tabac", "", ""}}

	_, err := engine.SyncSector(ctx, "CHR")
	require.NoError(t, err)
	_, err = engine.SyncSector(ctx, "tabac")
	require.NoError(t, err)

	assert.Equal(t, "chr", storedCodes(t, repo, "CHR")["X1"].Name)
	assert.Equal(t, "tabac", storedCodes(t, repo, "Tabac")["X1"].Name)
}

func TestSyncSectorMalformedSheetKeepsData(t *testing.T) {
	engine, fetcher, repo, _ := setup(t)
	ctx := context.Background()
	fetcher.rows["CHR"] = [][]string{header, {"C1", "Bar", "", ""}}
	_, err := engine.SyncSector(ctx, "CHR")
	require.NoError(t, err)

	fetcher.rows["CHR"] = nil
	_, err = engine.SyncSector(ctx, "CHR")
	assert.ErrorIs(t, err, sheets.ErrMalformedSheet)
	assert.Len(t, storedCodes(t, repo, "CHR"), 1)
}

func TestSyncSectorUnknown(t *testing.T) {
	engine, _, _, _ := setup(t)
	_, err := engine.SyncSector(context.Background(), "Kezia")
	assert.ErrorIs(t, err, ErrUnknownSector)

	var se *SectorError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Kezia", se.Sector)
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	engine, fetcher, _, notifier := setup(t)
	ctx := context.Background()
	fetcher.rows["CHR"] = [][]string{header, {"C1", "Bar", "", ""}}
	fetcher.rows["Tabac"] = [][]string{header}
	fetcher.errs["HACCP"] = sheets.ErrSourceUnavailable

	var progressed []string
	out := engine.SyncAllWithProgress(ctx, func(sector string, _ SectorOutcome) {
		progressed = append(progressed, sector)
	})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"CHR", "HACCP", "Tabac"}, progressed)
	assert.NoError(t, out["CHR"].Err)
	assert.Equal(t, 1, out["CHR"].Added)
	assert.ErrorIs(t, out["HACCP"].Err, sheets.ErrSourceUnavailable)
	assert.NoError(t, out["Tabac"].Err)
	assert.Equal(t, []string{"HACCP"}, FailedSectors(out))

	assert.Contains(t, notifier.notices, recordedNotice{sector: "CHR", typ: notification.TypeInfo})
	assert.Contains(t, notifier.notices, recordedNotice{typ: notification.TypeError})
	assert.Len(t, notifier.notices, 2)

	assert.Error(t, engine.Task(ctx))
}

func TestSectorOutcomeJSON(t *testing.T) {
	ok, err := json.Marshal(SectorOutcome{Result: Result{Added: 1, Updated: 2, Deleted: 3}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"added":1,"updated":2,"deleted":3}`, string(ok))

	failed, err := json.Marshal(SectorOutcome{Err: errors.New("SQL logic error: no such table: installations")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Échec de la synchronisation"}`, string(failed))
}

func TestPublicMessage(t *testing.T) {
	wrapped := func(err error) error { return &SectorError{Sector: "CHR", Err: err} }

	assert.Equal(t, "Secteur non configuré", PublicMessage(wrapped(ErrUnknownSector)))
	assert.Equal(t, "Feuille Google inaccessible", PublicMessage(wrapped(sheets.ErrSourceUnavailable)))
	assert.Equal(t, "Feuille mal formée (colonne Code client introuvable)", PublicMessage(wrapped(sheets.ErrMalformedSheet)))
	assert.Contains(t, PublicMessage(wrapped(errors.Join(installation.ErrStaleWrite))), "réessayez")
	assert.Equal(t, "Échec de la synchronisation", PublicMessage(wrapped(errors.New("pq: connection refused"))))
	assert.Empty(t, PublicMessage(nil))
}

func TestSyncHandlerHidesStoreErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.OpenInMemory("sheetsync_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&installation.Installation{}))
	require.NoError(t, db.Migrator().DropTable(&installation.Installation{}))

	fetcher := &fakeFetcher{rows: map[string][][]string{"CHR": {header, {"C1", "Bar", "", ""}}}}
	notifier := &fakeNotifier{}
	engine := NewEngine(fetcher, installation.NewRepository(db), testSheets[:1], notifier)

	router := gin.New()
	NewHandler(engine).RegisterRoutes(router.Group("/api"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync-installations", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotContains(t, w.Body.String(), "no such table")
	assert.NotContains(t, w.Body.String(), "installations (")
	assert.Contains(t, w.Body.String(), "Échec de la synchronisation")
	assert.Equal(t, []string{"Échec de la synchronisation"}, notifier.adminMessages)
}

func TestSyncHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine, fetcher, _, _ := setup(t)
	fetcher.rows["CHR"] = [][]string{header, {"C1", "Bar", "", ""}}
	fetcher.rows["Tabac"] = [][]string{header}
	fetcher.errs["HACCP"] = errors.New("token expired")

	router := gin.New()
	NewHandler(engine).RegisterRoutes(router.Group("/api"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync-installations", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                       `json:"success"`
		Data    map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.JSONEq(t, `{"added":1,"updated":0,"deleted":0}`, string(body.Data["CHR"]))
	assert.NotContains(t, string(body.Data["HACCP"]), "token expired")
	assert.JSONEq(t, `{"error":"Échec de la synchronisation"}`, string(body.Data["HACCP"]))
}
