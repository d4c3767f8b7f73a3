package merchantd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func signAdminToken(t *testing.T, role string) string {
	t.Helper()
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func newTestServer(t *testing.T, mock *mockCommerce) (*httptest.Server, *SettingsStore) {
	t.Helper()
	svc, store := newTestService(t, mock)
	auth, err := NewAuthenticator(testJWTSecret)
	require.NoError(t, err)
	srv := NewServer(svc, auth, RateLimitConfig{RequestsPerMinute: 6000, Burst: 100}, slog.Default())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, payload any) (*http.Response, apiResponse) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	var decoded apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// failureMessage decodes the data field of a failed response, which carries
// the human-readable message.
func failureMessage(t *testing.T, decoded apiResponse) string {
	t.Helper()
	require.False(t, decoded.Success)
	var msg string
	require.NoError(t, json.Unmarshal(decoded.Data, &msg))
	return msg
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	ts, _ := newTestServer(t, &mockCommerce{})
	resp, decoded := doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decoded.Success)
}

func TestAdminAPIRequiresBearerToken(t *testing.T) {
	ts, _ := newTestServer(t, &mockCommerce{})

	resp, decoded := doJSON(t, ts, http.MethodGet, "/api/v1/rates", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, decoded.Success)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/rates", "garbage.token.here", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminAPIRejectsNonAdminRole(t *testing.T) {
	ts, _ := newTestServer(t, &mockCommerce{})
	token := signAdminToken(t, "viewer")
	resp, _ := doJSON(t, ts, http.MethodGet, "/api/v1/rates", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClaimEndpoint(t *testing.T) {
	mock := &mockCommerce{claimResult: &ClaimResult{
		StoreID:       "store-1",
		APISecret:     "secret",
		WalletAddress: "rCLAIMED",
		WalletType:    WalletXaman,
	}}
	ts, _ := newTestServer(t, mock)
	token := signAdminToken(t, RoleAdmin)

	resp, decoded := doJSON(t, ts, http.MethodPost, "/api/v1/store/claim", token,
		map[string]string{"token": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decoded.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(decoded.Data, &data))
	require.Equal(t, testAdminURL, data["redirect_url"])
}

func TestClaimEndpointRejectsMalformedToken(t *testing.T) {
	mock := &mockCommerce{}
	ts, _ := newTestServer(t, mock)
	token := signAdminToken(t, RoleAdmin)

	resp, decoded := doJSON(t, ts, http.MethodPost, "/api/v1/store/claim", token,
		map[string]string{"token": "nope"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, decoded.Success)
	require.Zero(t, mock.claimCalls)
}

func TestDeleteEndpointConfirmationMismatch(t *testing.T) {
	ts, store := newTestServer(t, &mockCommerce{})
	connectStore(t, store)
	token := signAdminToken(t, RoleAdmin)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/store/delete", token,
		map[string]string{"confirmation": "delete please"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWalletStatusEndpointHidesTransportDetail(t *testing.T) {
	mock := &mockCommerce{statusErr: remoteUnavailable(nil)}
	ts, store := newTestServer(t, mock)
	connectStore(t, store)
	token := signAdminToken(t, RoleAdmin)

	resp, decoded := doJSON(t, ts, http.MethodGet, "/api/v1/wallet/status", token, nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "connection error, please retry", failureMessage(t, decoded))
}

func TestFailureResponsesCarryMessageInDataField(t *testing.T) {
	ts, _ := newTestServer(t, &mockCommerce{})
	token := signAdminToken(t, RoleAdmin)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/store/claim",
		bytes.NewReader([]byte(`{"token":"nope"}`)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Contains(t, raw, "success")
	require.Contains(t, raw, "data")
	require.NotContains(t, raw, "error")

	var msg string
	require.NoError(t, json.Unmarshal(raw["data"], &msg))
	require.Contains(t, msg, "token")
}

func TestSetPayoutModeEndpointConflict(t *testing.T) {
	ts, store := newTestServer(t, &mockCommerce{})
	connectStore(t, store)
	record, err := store.Load()
	require.NoError(t, err)
	record.WalletType = string(WalletXaman)
	require.NoError(t, store.Save(record))

	token := signAdminToken(t, RoleAdmin)
	resp, _ := doJSON(t, ts, http.MethodPut, "/api/v1/payout/mode", token,
		map[string]string{"mode": "auto"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateRatesEndpointReportsRejectedLevels(t *testing.T) {
	mock := &mockCommerce{}
	ts, store := newTestServer(t, mock)
	connectStore(t, store)
	token := signAdminToken(t, RoleAdmin)

	resp, decoded := doJSON(t, ts, http.MethodPut, "/api/v1/rates", token,
		map[string]any{"rates": []float64{30, 99, 4, 2, 1}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decoded.Success)

	var data struct {
		Rates      RateTable `json:"rates"`
		SumWarning bool      `json:"sum_warning"`
		Rejected   []string  `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(decoded.Data, &data))
	require.Equal(t, RateTable{30, 5, 4, 2, 1}, data.Rates)
	require.Len(t, data.Rejected, 1)
}

func TestReferralEndpointConflictOnSecondApply(t *testing.T) {
	mock := &mockCommerce{}
	ts, store := newTestServer(t, mock)
	connectStore(t, store)
	token := signAdminToken(t, RoleAdmin)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/referral", token,
		map[string]string{"code": "friend1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/referral", token,
		map[string]string{"code": "friend2"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRateLimitEndpoint(t *testing.T) {
	svc, _ := newTestService(t, &mockCommerce{})
	auth, err := NewAuthenticator(testJWTSecret)
	require.NoError(t, err)
	srv := NewServer(svc, auth, RateLimitConfig{RequestsPerMinute: 60, Burst: 2}, slog.Default())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	token := signAdminToken(t, RoleAdmin)
	var last int
	for i := 0; i < 5; i++ {
		resp, _ := doJSON(t, ts, http.MethodGet, "/api/v1/rates", token, nil)
		last = resp.StatusCode
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestRateLimiterCloseStopsReaper(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1})
	require.True(t, rl.allow("subject"))

	rl.Close()
	rl.Close()

	select {
	case <-rl.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}
}

func TestServerCloseIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, &mockCommerce{})
	auth, err := NewAuthenticator(testJWTSecret)
	require.NoError(t, err)
	srv := NewServer(svc, auth, RateLimitConfig{RequestsPerMinute: 60, Burst: 2}, slog.Default())

	srv.Close()
	srv.Close()
}
