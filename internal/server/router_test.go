package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"jdcportal/internal/config"
	"jdcportal/internal/database"
	"jdcportal/internal/database/migrations"
	"jdcportal/internal/domain/auth"
	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/domain/sheetsync"
	"jdcportal/internal/domain/shipment"
	"jdcportal/internal/domain/ticket"
	"jdcportal/internal/domain/user"
	"jdcportal/internal/middleware"
	jwtsvc "jdcportal/internal/pkg/jwt"
	"jdcportal/internal/pkg/tokenbox"
	"jdcportal/internal/scheduler"
)

const cronSecret = "cron-test-secret"

type sheetStub map[string][][]string

func (s sheetStub) FetchRows(_ context.Context, sheet config.SectorSheet) ([][]string, error) {
	return s[sheet.Sector], nil
}

type TestResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type suite struct {
	router     *gin.Engine
	db         *gorm.DB
	adminToken string
	techToken  string
	taskRuns   int
}

func setupSuite(t *testing.T) *suite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenInMemory("server_" + t.Name())
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))

	s := &suite{db: db}
	j := jwtsvc.New("test_secret_key_32_characters_min", time.Hour)
	box := tokenbox.New([32]byte{1})

	userRepo := user.NewRepository(db)
	installationRepo := installation.NewRepository(db)
	shipmentRepo := shipment.NewRepository(db)
	ticketRepo := ticket.NewRepository(db)
	notificationService := notification.NewService(notification.NewRepository(db), userRepo, 0)

	sheets := []config.SectorSheet{
		{Sector: "CHR", SpreadsheetID: "chr", Tab: "Installations"},
		{Sector: "HACCP", SpreadsheetID: "haccp", Tab: "Installations"},
	}
	stub := sheetStub{
		"CHR": {
			{"Code client", "Nom", "Ville", "Statut"},
			{"C100", "Bar du Port", "Sète", "rendez-vous pris"},
			{"C200", "Café Central", "Lyon", ""},
		},
		"HACCP": {
			{"Code client", "Nom"},
			{"H1", "Cantine"},
		},
	}
	engine := sheetsync.NewEngine(stub, installationRepo, sheets, notificationService)

	sched := scheduler.New(scheduler.NewStateStore(db), nil, scheduler.Task{
		Name:     "heartbeat",
		Interval: time.Hour,
		Run: func(context.Context) error {
			s.taskRuns++
			return nil
		},
	})

	oauthCfg := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example/auth"}}
	s.router = NewRouter(
		Options{JWT: j, Access: userRepo, CronSecret: cronSecret},
		Handlers{
			Auth:          auth.NewHandler(auth.NewService(oauthCfg, userRepo, box, j, nil), false, "lax", 3600, "/"),
			Users:         user.NewHandler(userRepo),
			Installations: installation.NewHandler(installation.NewService(installationRepo, shipmentRepo), middleware.CanReadSector),
			Shipments:     shipment.NewHandler(shipmentRepo),
			Tickets:       ticket.NewHandler(ticketRepo),
			Notifications: notification.NewHandler(notificationService),
			Sync:          sheetsync.NewHandler(engine),
			Scheduler:     scheduler.NewHandler(sched),
		},
	)

	ctx := context.Background()
	require.NoError(t, userRepo.Upsert(ctx, &user.Profile{UID: "admin-1", Email: "admin@jdc.fr", Role: user.RoleAdmin}))
	require.NoError(t, userRepo.Upsert(ctx, &user.Profile{UID: "tech-1", Email: "tech@jdc.fr", Role: user.RoleTechnician, Sectors: []string{"CHR"}}))
	require.NoError(t, db.Create(&shipment.Shipment{ClientCode: "c100", Sector: "CHR", Status: "livré"}).Error)

	s.adminToken, err = j.GenerateToken("admin-1", "admin@jdc.fr", "Admin", nil)
	require.NoError(t, err)
	s.techToken, err = j.GenerateToken("tech-1", "tech@jdc.fr", "Technician", []string{"CHR"})
	require.NoError(t, err)
	return s
}

func (s *suite) makeRequest(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, data any) *TestResponse {
	t.Helper()
	var resp TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return &resp
}

func TestHealthAndAuthGate(t *testing.T) {
	s := setupSuite(t)

	w := s.makeRequest(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.makeRequest(http.MethodGet, "/api/notifications/list", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.makeRequest(http.MethodGet, "/api/me", nil, s.techToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAccessChangeAppliesToIssuedSessions(t *testing.T) {
	s := setupSuite(t)

	w := s.makeRequest(http.MethodGet, "/api/admin/users", nil, s.adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.makeRequest(http.MethodPatch, "/api/admin/users/admin-1", map[string]any{"role": "Client"}, s.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.makeRequest(http.MethodGet, "/api/admin/users", nil, s.adminToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.makeRequest(http.MethodPost, "/api/sync-installations", nil, s.adminToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the technician loses CHR without logging in again
	w = s.makeRequest(http.MethodGet, "/api/installations/CHR", nil, s.techToken)
	require.Equal(t, http.StatusOK, w.Code)
	_, err := user.NewRepository(s.db).UpdateAccess(context.Background(), "tech-1", user.RoleTechnician, []string{"HACCP"})
	require.NoError(t, err)
	w = s.makeRequest(http.MethodGet, "/api/installations/CHR", nil, s.techToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSyncThenBrowseAsTechnician(t *testing.T) {
	s := setupSuite(t)

	w := s.makeRequest(http.MethodPost, "/api/sync-installations", nil, s.techToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.makeRequest(http.MethodPost, "/api/sync-installations", nil, s.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var outcomes map[string]map[string]any
	parseResponse(t, w, &outcomes)
	assert.EqualValues(t, 2, outcomes["CHR"]["added"])
	assert.EqualValues(t, 1, outcomes["HACCP"]["added"])

	w = s.makeRequest(http.MethodGet, "/api/installations/CHR", nil, s.techToken)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Installations []installation.Installation `json:"installations"`
	}
	parseResponse(t, w, &list)
	require.Len(t, list.Installations, 2)
	ctn := map[string]bool{}
	for _, inst := range list.Installations {
		ctn[inst.CodeClient] = inst.HasCTN
	}
	assert.True(t, ctn["C100"])
	assert.False(t, ctn["C200"])

	w = s.makeRequest(http.MethodGet, "/api/installations/chr", nil, s.techToken)
	require.Equal(t, http.StatusOK, w.Code)
	parseResponse(t, w, &list)
	assert.Len(t, list.Installations, 2)

	w = s.makeRequest(http.MethodGet, "/api/installations/HACCP", nil, s.techToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.makeRequest(http.MethodGet, "/api/notifications/list", nil, s.techToken)
	require.Equal(t, http.StatusOK, w.Code)
	var feed notification.ListResponse
	parseResponse(t, w, &feed)
	require.Len(t, feed.Notifications, 1)
	assert.Equal(t, "Synchronisation CHR", feed.Notifications[0].Title)
	assert.Equal(t, 1, feed.UnreadCount)
}

func TestAdminNotificationTrigger(t *testing.T) {
	s := setupSuite(t)

	body := map[string]any{"title": "Maintenance", "message": "Coupure 22h", "targetRoles": []string{"Technician"}}
	w := s.makeRequest(http.MethodPost, "/api/notifications", body, s.techToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.makeRequest(http.MethodPost, "/api/notifications", map[string]any{"type": "loud"}, s.adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseResponse(t, w, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	w = s.makeRequest(http.MethodPost, "/api/notifications", body, s.adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	parseResponse(t, w, &created)
	require.NotEmpty(t, created.ID)

	w = s.makeRequest(http.MethodPost, "/api/notifications/"+created.ID+"/read", nil, s.techToken)
	assert.Equal(t, http.StatusOK, w.Code)

	var feed notification.ListResponse
	w = s.makeRequest(http.MethodGet, "/api/notifications/list", nil, s.techToken)
	parseResponse(t, w, &feed)
	require.Len(t, feed.Notifications, 1)
	assert.True(t, feed.Notifications[0].IsRead)
	assert.Equal(t, 0, feed.UnreadCount)
}

func TestScheduledTasksUseCronSecret(t *testing.T) {
	s := setupSuite(t)

	w := s.makeRequest(http.MethodPost, "/api/scheduled-tasks", nil, s.adminToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, s.taskRuns)

	req := httptest.NewRequest(http.MethodPost, "/api/scheduled-tasks", nil)
	req.Header.Set("X-Cron-Secret", cronSecret)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.taskRuns)
}
