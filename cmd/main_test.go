package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/car-rental/internal/auth"
	"github.com/ukydev/car-rental/internal/db"
	"github.com/ukydev/car-rental/internal/handlers"
	"github.com/ukydev/car-rental/internal/lifecycle"
	"github.com/ukydev/car-rental/internal/metrics"
	"github.com/ukydev/car-rental/internal/middleware"
	"github.com/ukydev/car-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memRecords struct {
	mu      sync.Mutex
	records map[primitive.ObjectID]models.Record
}

func (s *memRecords) InsertRecord(_ context.Context, r models.Record) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = primitive.NewObjectID()
	s.records[r.ID] = r
	return r, nil
}

func (s *memRecords) FindRecordByID(_ context.Context, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	r, ok := s.records[oid]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &r, nil
}

func (s *memRecords) FindRecords(_ context.Context, _ bson.M) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memRecords) ReplaceRecord(_ context.Context, r models.Record, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[r.ID]
	if !ok {
		return db.ErrNotFound
	}
	if cur.Version != expected {
		return db.ErrVersionConflict
	}
	s.records[r.ID] = r
	return nil
}

func (s *memRecords) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	if _, ok := s.records[oid]; !ok {
		return db.ErrNotFound
	}
	delete(s.records, oid)
	return nil
}

type noVehicles struct{}

func (noVehicles) FindVehicleByID(context.Context, string) (*models.Vehicle, error) {
	return nil, db.ErrNotFound
}

func (noVehicles) FindVehiclesByIDs(context.Context, []string) (map[string]models.Vehicle, error) {
	return map[string]models.Vehicle{}, nil
}

type noUsers struct{}

func (noUsers) InsertUser(context.Context, models.User) error { return nil }
func (noUsers) FindUserByID(context.Context, string) (*models.User, error) {
	return nil, db.ErrNotFound
}
func (noUsers) FindUserByUsername(context.Context, string) (*models.User, error) {
	return nil, db.ErrNotFound
}
func (noUsers) FindUserByEmail(context.Context, string) (*models.User, error) {
	return nil, db.ErrNotFound
}
func (noUsers) UpdateUser(context.Context, string, models.User) error { return nil }
func (noUsers) UpdateLastLogin(context.Context, string) error { return nil }
func (noUsers) ConsumeCodeAttempt(context.Context, string, string) (int, error) {
	return 0, db.ErrNotFound
}

type testServer struct {
	handler     http.Handler
	authService *auth.Service
	logs        *test.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithProxy(t, false)
}

func newTestServerWithProxy(t *testing.T, trustProxy bool) *testServer {
	t.Helper()
	authService, err := auth.NewService("router-test", time.Hour, 0)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	controller := func(name string) *lifecycle.Controller {
		return lifecycle.NewController(
			&memRecords{records: map[primitive.ObjectID]models.Record{}},
			noVehicles{},
			lifecycle.Options{Collection: name, Metrics: m, Logger: log.NewEntry(logger)},
		)
	}

	return &testServer{
		handler: newRouter(server{
			reservations: controller(reservationsCollection),
			maintenance:  controller(maintenanceCollection),
			auth:         handlers.NewAuthHandler(authService, noUsers{}, nil),
			authMW:       middleware.NewAuthMiddleware(authService),
			limiter:      middleware.NewRateLimitMiddleware(),
			rateLimit:    2,
			trustProxy:   trustProxy,
			storeTimeout: time.Second,
			ping:         func(context.Context) error { return nil },
			gatherer:     registry,
			logger:       log.NewEntry(logger),
		}),
		authService: authService,
		logs:        hook,
	}
}

func (s *testServer) do(t *testing.T, role models.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	if role != "" {
		token, err := s.authService.GenerateToken(&models.User{ID: primitive.NewObjectID(), Username: string(role), Role: role})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func createBody() string {
	return `{"subjectId":"` + primitive.NewObjectID().Hex() + `","category":"Oil change","startDate":"2025-05-01","endDate":"2025-05-02"}`
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "", "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "", "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "", "GET", "/api/reservations", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RecordLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, models.RoleClient, "POST", "/api/maintenance", createBody())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, models.RoleEmployee, "POST", "/api/maintenance", createBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data models.RecordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.StatusPending, created.Data.Status)
	id := created.Data.ID.Hex()

	w = s.do(t, models.RoleClient, "GET", "/api/maintenance/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))

	w = s.do(t, models.RoleEmployee, "PUT", "/api/maintenance/"+id, `{"status":"Active"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// Collections are independent.
	w = s.do(t, models.RoleClient, "GET", "/api/reservations", "")
	assert.JSONEq(t, `{"success":true,"message":"Reservations retrieved successfully","data":[],"count":0}`, w.Body.String())

	w = s.do(t, models.RoleEmployee, "DELETE", "/api/maintenance/"+id, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, models.RoleAdmin, "DELETE", "/api/maintenance/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, models.RoleAdmin, "DELETE", "/api/maintenance/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, "", "GET", "/metrics", "")
	assert.Contains(t, w.Body.String(), `rental_record_operations_total{collection="maintenance",operation="create",outcome="ok"} 1`)
	assert.Contains(t, w.Body.String(), `outcome="not_found"`)
}

func TestRouter_AuthRateLimit(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		w := s.do(t, "", "POST", "/api/auth/login", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := s.do(t, "", "POST", "/api/auth/login", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_AuthRateLimitIgnoresForwardingHeaders(t *testing.T) {
	login := func(s *testServer, i int) int {
		req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString(`{}`))
		req.RemoteAddr = "203.0.113.5:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)
		return w.Code
	}

	direct := newTestServer(t)
	var codes []int
	for i := 0; i < 4; i++ {
		codes = append(codes, login(direct, i))
	}
	assert.Equal(t, []int{400, 400, 429, 429}, codes)

	// Behind a trusted proxy each forwarded address has its own budget.
	proxied := newTestServerWithProxy(t, true)
	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusBadRequest, login(proxied, i))
	}
}

func TestRouter_LogsRequests(t *testing.T) {
	s := newTestServer(t)

	s.do(t, "", "GET", "/health", "")

	var found bool
	for _, e := range s.logs.AllEntries() {
		if e.Message == "request" && e.Data["path"] == "/health" {
			found = true
			assert.NotEmpty(t, e.Data["request_id"])
		}
	}
	assert.True(t, found)
}
