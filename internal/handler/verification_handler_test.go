package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/simurgh/internal/pkg/errcode"
)

func TestVerificationFlow(t *testing.T) {
	s := setupRouter(t, 0)
	token := s.login(t)
	res := s.do(t, http.MethodPost, "/api/v1/admin/employees", token, map[string]string{
		"first_name": "Ada", "second_name": "Lovelace", "username": "ada", "office_email": "ada@example.com",
	})
	require.Zero(t, res.Code)

	now := time.Now().Unix()
	res = s.do(t, http.MethodPost, "/api/v1/verify/requests", "", map[string]interface{}{"username": "ada", "client_utc_dt": now})
	require.Zero(t, res.Code)
	var issued struct {
		Reference   string `json:"reference"`
		ServerUTCDt int64  `json:"server_utc_dt"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &issued))
	require.Len(t, issued.Reference, 16)
	require.NotZero(t, issued.ServerUTCDt)
	require.NotContains(t, string(res.Data), "secret")

	secret := s.db.Verifications()[0].Secret
	res = s.do(t, http.MethodPost, "/api/v1/verify/check", "", map[string]interface{}{"reference": issued.Reference, "client_secret": "nope", "client_utc_dt": now})
	require.Equal(t, errcode.ErrVerificationFailed, res.Code)
	require.Equal(t, "identity verification failed", res.Message)

	res = s.do(t, http.MethodPost, "/api/v1/verify/check", "", map[string]interface{}{"reference": issued.Reference, "client_secret": secret, "client_utc_dt": now})
	require.Zero(t, res.Code)
	require.True(t, len(res.Data) == 0 || string(res.Data) == "null", "check answers no data: %s", res.Data)

	res = s.do(t, http.MethodPost, "/api/v1/verify/check", "", map[string]interface{}{"reference": issued.Reference, "client_secret": secret, "client_utc_dt": now})
	require.Equal(t, errcode.ErrNotFound, res.Code)
	require.Equal(t, "not found", res.Message)
}

func TestVerificationErrors(t *testing.T) {
	s := setupRouter(t, 0)
	now := time.Now().Unix()

	res := s.do(t, http.MethodPost, "/api/v1/verify/requests", "", map[string]interface{}{"username": "ghost", "client_utc_dt": now})
	require.Equal(t, errcode.ErrNotFound, res.Code)
	require.Equal(t, "not found", res.Message)

	res = s.do(t, http.MethodPost, "/api/v1/verify/requests", "", map[string]interface{}{"username": "ghost", "client_utc_dt": now - 3600})
	require.Equal(t, errcode.ErrClockSkew, res.Code)
	require.Equal(t, "client clock out of range", res.Message)

	res = s.do(t, http.MethodPost, "/api/v1/verify/requests", "", map[string]interface{}{"client_utc_dt": now})
	require.Equal(t, errcode.ErrInvalid, res.Code)

	res = s.do(t, http.MethodPost, "/api/v1/verify/check", "", map[string]interface{}{"reference": "R", "client_utc_dt": now})
	require.Equal(t, errcode.ErrInvalid, res.Code)
}

func TestVerificationRateLimited(t *testing.T) {
	s := setupRouter(t, time.Minute)
	now := time.Now().Unix()
	body := map[string]interface{}{"username": "ghost", "client_utc_dt": now}

	res := s.do(t, http.MethodPost, "/api/v1/verify/requests", "", body)
	require.Equal(t, errcode.ErrNotFound, res.Code)
	res = s.do(t, http.MethodPost, "/api/v1/verify/requests", "", body)
	require.Equal(t, errcode.ErrTooMany, res.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupRouter(t, 0)
	s.do(t, http.MethodPost, "/api/v1/verify/check", "", map[string]interface{}{"reference": "R", "client_secret": "x", "client_utc_dt": time.Now().Unix()})

	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `simurgh_verification_checks_total{result="not_found"} 1`)
}
