package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"branchqueue/internal/models"
	"branchqueue/internal/queue"
	"branchqueue/internal/response"
	"branchqueue/internal/snapshot"
	"branchqueue/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
}

func setupRouter(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := storage.OpenTestDatabase(fmt.Sprintf("%s_%d", name, time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := queue.NewStore(db, queue.Clock{Location: time.UTC})
	provider := snapshot.NewProvider(snapshot.NewMemoryCache(16, time.Minute), store, zap.NewNop())
	svc := queue.NewService(store, provider, queue.DefaultAvgServiceMinutes, zap.NewNop())

	r := gin.New()
	NewQueueHandler(svc, provider).Register(r.Group("/api"))
	return &testAPI{router: r, db: db}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) seed(t *testing.T) (division models.Division, terminal models.Terminal) {
	t.Helper()
	division = models.Division{Name: "Accounts", QueuePrefix: "A"}
	require.NoError(t, a.db.Create(&division).Error)
	terminal = models.Terminal{DivisionID: division.ID, Number: 2}
	require.NoError(t, a.db.Create(&terminal).Error)
	return division, terminal
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, code, decode[response.ErrorResponse](t, w).Code)
}

func TestCreateTicketHandler(t *testing.T) {
	api := setupRouter(t)
	d, _ := api.seed(t)

	w := api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID),
		CreateTicketRequest{CustomerName: "Ivan", PriorityLevel: 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[snapshot.TicketView](t, w)
	assert.Equal(t, "A-001", first.QueueNumber)
	assert.Equal(t, models.StatusWaiting, first.Status)
	assert.Equal(t, 1, first.PriorityLevel)

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil)
	require.Equal(t, http.StatusCreated, w.Code, "empty body is a ticket without customer data")
	second := decode[snapshot.TicketView](t, w)
	assert.Equal(t, "A-002", second.QueueNumber)
	assert.Equal(t, 1, second.Position)
}

func TestCreateTicketHandlerErrors(t *testing.T) {
	api := setupRouter(t)
	d, _ := api.seed(t)

	w := api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), map[string]int{"priority_level": -1})
	assertError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")

	w = api.do(t, http.MethodPost, "/api/divisions/999/tickets", nil)
	assertError(t, w, http.StatusNotFound, "DIVISION_NOT_FOUND")

	w = api.do(t, http.MethodPost, "/api/divisions/abc/tickets", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_DIVISION_ID")
}

func TestNextHandler(t *testing.T) {
	api := setupRouter(t)
	d, term := api.seed(t)
	next := fmt.Sprintf("/api/divisions/%d/next", d.ID)

	w := api.do(t, http.MethodPost, next, map[string]any{})
	assertError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")

	w = api.do(t, http.MethodPost, next, TerminalRequest{TerminalID: term.ID})
	assertError(t, w, http.StatusNotFound, "QUEUE_EMPTY")

	api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil)
	w = api.do(t, http.MethodPost, next, TerminalRequest{TerminalID: term.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	called := decode[snapshot.TicketView](t, w)
	assert.Equal(t, models.StatusInProgress, called.Status)
	require.NotNil(t, called.TerminalID)
	assert.Equal(t, term.ID, *called.TerminalID)

	w = api.do(t, http.MethodPost, next, TerminalRequest{TerminalID: 999})
	assertError(t, w, http.StatusNotFound, "TERMINAL_NOT_FOUND")
}

func TestTicketLifecycleHandlers(t *testing.T) {
	api := setupRouter(t)
	d, term := api.seed(t)

	created := decode[snapshot.TicketView](t, api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil))
	ticket := fmt.Sprintf("/api/tickets/%d", created.ID)

	w := api.do(t, http.MethodPost, ticket+"/end", nil)
	assertError(t, w, http.StatusConflict, "INVALID_TRANSITION")

	w = api.do(t, http.MethodPost, ticket+"/skip", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[snapshot.TicketView](t, w).IsSkipped)

	w = api.do(t, http.MethodPost, ticket+"/skip", nil)
	assertError(t, w, http.StatusConflict, "INVALID_TRANSITION")

	w = api.do(t, http.MethodPost, ticket+"/call", TerminalRequest{TerminalID: term.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusInProgress, decode[snapshot.TicketView](t, w).Status)

	w = api.do(t, http.MethodPost, ticket+"/end", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusCompleted, decode[snapshot.TicketView](t, w).Status)

	w = api.do(t, http.MethodDelete, ticket, nil)
	assertError(t, w, http.StatusConflict, "INVALID_TRANSITION")

	waiting := decode[snapshot.TicketView](t, api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil))
	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/tickets/%d", waiting.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ticket deleted", decode[response.SuccessResponse](t, w).Message)

	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/tickets/%d", waiting.ID), nil)
	assertError(t, w, http.StatusNotFound, "TICKET_NOT_FOUND")

	w = api.do(t, http.MethodPost, "/api/tickets/0/skip", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_TICKET_ID")
}

func TestQueueHandlerSeesMutations(t *testing.T) {
	api := setupRouter(t)
	d, _ := api.seed(t)
	queuePath := fmt.Sprintf("/api/divisions/%d/queue", d.ID)

	api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil)
	w := api.do(t, http.MethodGet, queuePath, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[snapshot.Snapshot](t, w).Waiting, 1)

	api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil)
	w = api.do(t, http.MethodGet, queuePath, nil)
	assert.Len(t, decode[snapshot.Snapshot](t, w).Waiting, 2, "cached snapshot is dropped on create")

	w = api.do(t, http.MethodGet, "/api/divisions/999/queue", nil)
	assertError(t, w, http.StatusNotFound, "DIVISION_NOT_FOUND")
}

func TestEstimateHandler(t *testing.T) {
	api := setupRouter(t)
	d, _ := api.seed(t)
	for i := 0; i < 3; i++ {
		api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil)
	}

	w := api.do(t, http.MethodGet, fmt.Sprintf("/api/divisions/%d/estimate", d.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, EstimateResponse{DivisionID: d.ID, PriorityLevel: 0, EstimatedWait: 45}, decode[EstimateResponse](t, w))

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/divisions/%d/estimate?priority_level=1", d.ID), nil)
	assert.Equal(t, 0, decode[EstimateResponse](t, w).EstimatedWait)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/divisions/%d/estimate?priority_level=x", d.ID), nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_PRIORITY")

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/divisions/%d/estimate?priority_level=-2", d.ID), nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_PRIORITY")
}

func TestWaitingHandler(t *testing.T) {
	api := setupRouter(t)
	d, _ := api.seed(t)
	other := models.Division{Name: "Billing"}
	require.NoError(t, api.db.Create(&other).Error)

	api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", d.ID), nil)
	api.do(t, http.MethodPost, fmt.Sprintf("/api/divisions/%d/tickets", other.ID), nil)

	w := api.do(t, http.MethodGet, "/api/waiting", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[queue.WaitingList](t, w).Total)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/waiting?division_id=%d", other.ID), nil)
	list := decode[queue.WaitingList](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "B-001", list.Queues[0].QueueNumber)
	assert.Equal(t, "Billing", list.Queues[0].DivisionName)

	w = api.do(t, http.MethodGet, "/api/waiting?division_id=x", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_DIVISION_ID")
}

type connections int

func (c connections) ConnectionCount() int { return int(c) }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", Health(connections(3)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.HealthResponse{Status: "ok", Connections: 3}, decode[response.HealthResponse](t, w))
}
