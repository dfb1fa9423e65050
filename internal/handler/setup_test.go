package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/simurgh/internal/handler"
	"github.com/xxxsen/simurgh/internal/metrics"
	"github.com/xxxsen/simurgh/internal/middleware"
	"github.com/xxxsen/simurgh/internal/pkg/password"
	"github.com/xxxsen/simurgh/internal/repo/memrepo"
	"github.com/xxxsen/simurgh/internal/service"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router http.Handler
	db     *memrepo.DB
}

func setupRouter(t *testing.T, rateLimit time.Duration) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memrepo.New()
	stores := db.Stores()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	jwtSecret := []byte("test-secret")
	hash, err := password.Hash("admin-pass")
	require.NoError(t, err)

	deps := handler.RouterDeps{
		Verifications: handler.NewVerificationHandler(service.NewVerificationService(stores, service.VerificationOptions{Metrics: m})),
		Employees:     handler.NewEmployeeHandler(service.NewEmployeeService(stores, nil)),
		Admin:         handler.NewAdminHandler(service.NewAdminService("admin", hash, jwtSecret, time.Hour)),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		JWTSecret:     jwtSecret,
		RateLimit:     rateLimit,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testServer{router: engine, db: db}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	res := s.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"username": "admin", "password": "admin-pass"})
	require.Zero(t, res.Code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}
