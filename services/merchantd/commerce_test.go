package merchantd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newCommerceClient(url string) *HTTPCommerceClient {
	return NewHTTPCommerceClient(CommerceConfig{BaseURL: url})
}

func TestHTTPCommerceClientClaimSecret(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"store_id":"store-1","api_secret":"s","wallet_address":"rNEW","wallet_type":"xaman"}`))
	}))
	defer srv.Close()

	result, err := newCommerceClient(srv.URL).ClaimSecret(context.Background(), "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4")
	require.NoError(t, err)
	require.Equal(t, "/store/claim-secret", gotPath)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, map[string]string{"claim_token": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4"}, gotBody)
	require.Equal(t, "store-1", result.StoreID)
	require.Equal(t, "s", result.APISecret)
	require.Equal(t, "rNEW", result.WalletAddress)
	require.Equal(t, WalletXaman, result.WalletType)
}

func TestHTTPCommerceClientSendsStoreHeaders(t *testing.T) {
	var gotStore, gotSecret, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStore = r.Header.Get("X-Store-ID")
		gotSecret = r.Header.Get("X-Api-Secret")
		gotPath = r.URL.Path
		w.Write([]byte(`{"success":true,"funded":true,"rlusd_trustline":true}`))
	}))
	defer srv.Close()

	creds := StoreCredentials{StoreID: "store-7", APISecret: "hush"}
	status, err := newCommerceClient(srv.URL).WalletStatus(context.Background(), creds, "rMERCHANT")
	require.NoError(t, err)
	require.Equal(t, "store-7", gotStore)
	require.Equal(t, "hush", gotSecret)
	require.Equal(t, "/wallet/status/rMERCHANT", gotPath)
	require.True(t, status.Ready())
}

func TestHTTPCommerceClientMapsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"token expired"}`))
	}))
	defer srv.Close()

	_, err := newCommerceClient(srv.URL).ClaimSecret(context.Background(), "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4")
	require.ErrorIs(t, err, ErrRemoteRejected)
	require.Contains(t, err.Error(), "token expired")
}

func TestHTTPCommerceClientMapsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"error":"bad secret"}`))
	}))
	defer srv.Close()

	_, err := newCommerceClient(srv.URL).CheckConnection(context.Background(), StoreCredentials{StoreID: "s", APISecret: "x"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHTTPCommerceClientMapsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newCommerceClient(srv.URL).ClaimSecret(context.Background(), "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4")
	require.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestHTTPCommerceClientMapsGarbagePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>nope</html>`))
	}))
	defer srv.Close()

	_, err := newCommerceClient(srv.URL).ClaimSecret(context.Background(), "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4")
	require.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestHTTPCommerceClientTransportFailure(t *testing.T) {
	_, err := newCommerceClient("http://127.0.0.1:1").ClaimSecret(context.Background(), "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4")
	require.ErrorIs(t, err, ErrRemoteUnavailable)
}
