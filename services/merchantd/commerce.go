package merchantd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dltpays/observability"
)

// ClaimResult is returned when a one-time claim token is exchanged for store
// credentials. The platform reports these fields flat alongside the success
// flag, not under a data key.
type ClaimResult struct {
	StoreID       string     `json:"store_id"`
	APISecret     string     `json:"api_secret"`
	WalletAddress string     `json:"wallet_address"`
	WalletType    WalletType `json:"wallet_type"`
}

// ConnectionInfo describes the store registration as the commerce platform
// sees it.
type ConnectionInfo struct {
	StoreID       string     `json:"store_id"`
	Active        bool       `json:"active"`
	WalletType    WalletType `json:"wallet_type"`
	WalletAddress string     `json:"wallet_address"`
}

// PromoValidation reports whether a promo code is recognised and what it
// grants.
type PromoValidation struct {
	Code        string  `json:"code"`
	Valid       bool    `json:"valid"`
	Description string  `json:"description"`
	BonusRate   float64 `json:"bonus_rate"`
}

// XamanHandshake carries the QR payload a merchant scans to link a Xaman
// wallet.
type XamanHandshake struct {
	PayloadUUID string `json:"payload_uuid"`
	QRPNG       string `json:"qr_png"`
	DeepLink    string `json:"deep_link"`
}

// XamanPollStatus is one observation of a pending Xaman handshake.
type XamanPollStatus struct {
	Status  string `json:"status"`
	Address string `json:"address"`
}

// Terminal Xaman handshake statuses. Anything else keeps the poll running.
const (
	XamanStatusConnected = "connected"
	XamanStatusExpired   = "expired"
	XamanStatusCancelled = "cancelled"
)

// Terminal reports whether the handshake has reached a final status.
func (s XamanPollStatus) Terminal() bool {
	switch s.Status {
	case XamanStatusConnected, XamanStatusExpired, XamanStatusCancelled:
		return true
	}
	return false
}

// StoreSettingsSync is the settings payload pushed to the commerce platform
// whenever the merchant saves configuration.
type StoreSettingsSync struct {
	Rates        RateTable      `json:"rates"`
	Batching     BatchingPolicy `json:"batching"`
	CookieDays   int            `json:"cookie_days"`
	PayoutMode   PayoutMode     `json:"payout_mode"`
	ReferralCode string         `json:"referral_code,omitempty"`
}

// StoreCredentials scope a commerce call to one registered store.
type StoreCredentials struct {
	StoreID   string
	APISecret string
}

// SignerInfo is the platform signer a wallet must add to its signer list
// before automatic signing can be verified.
type SignerInfo struct {
	SignerAddress string `json:"signer_address"`
}

// CommerceClient is the remote commerce platform surface merchantd depends
// on. Implementations must return ErrRemoteUnavailable-wrapped errors for
// transport failures and ErrRemoteRejected-wrapped errors when the platform
// declines the request.
type CommerceClient interface {
	ClaimSecret(ctx context.Context, token string) (*ClaimResult, error)
	RegisterStore(ctx context.Context, walletAddress string, walletType WalletType) (*ClaimResult, error)
	CheckConnection(ctx context.Context, creds StoreCredentials) (*ConnectionInfo, error)
	DeleteStore(ctx context.Context, creds StoreCredentials) error

	WalletStatus(ctx context.Context, creds StoreCredentials, address string) (*WalletStatus, error)
	SaveWallet(ctx context.Context, creds StoreCredentials, walletType WalletType, address string) error

	XamanConnectStart(ctx context.Context, creds StoreCredentials) (*XamanHandshake, error)
	XamanConnectStatus(ctx context.Context, creds StoreCredentials, payloadUUID string) (*XamanPollStatus, error)
	XamanLoginStart(ctx context.Context) (*XamanHandshake, error)
	XamanLoginStatus(ctx context.Context, payloadUUID string) (*XamanPollStatus, error)

	SyncSettings(ctx context.Context, creds StoreCredentials, sync StoreSettingsSync) error
	AutoSignSigner(ctx context.Context, creds StoreCredentials) (*SignerInfo, error)
	VerifyAutoSign(ctx context.Context, creds StoreCredentials, limits AutoSignLimits) error
	RevokeAutoSign(ctx context.Context, creds StoreCredentials) error

	ValidatePromo(ctx context.Context, code string) (*PromoValidation, error)
	ApplyReferral(ctx context.Context, creds StoreCredentials, code string) error
}

// HTTPCommerceClient talks to the commerce platform REST API.
type HTTPCommerceClient struct {
	baseURL string
	client  *http.Client
	metrics *observability.MerchantdMetrics
}

// NewHTTPCommerceClient builds a client for the configured commerce endpoint.
// Outbound requests carry trace propagation via the otelhttp transport.
func NewHTTPCommerceClient(cfg CommerceConfig) *HTTPCommerceClient {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPCommerceClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: observability.Merchantd(),
	}
}

type commerceEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// roundTrip issues the request and returns the raw response body once the
// transport-level outcomes are classified. Decode outcomes are observed by
// the caller.
func (c *HTTPCommerceClient) roundTrip(ctx context.Context, method, endpoint string, creds *StoreCredentials, payload any) ([]byte, time.Duration, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode %s payload: %w", endpoint, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		req.Header.Set("X-Store-ID", creds.StoreID)
		req.Header.Set("X-Api-Secret", creds.APISecret)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		elapsed := time.Since(started)
		c.metrics.ObserveRemote(endpoint, elapsed, "transport")
		return nil, elapsed, remoteUnavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	elapsed := time.Since(started)
	if err != nil {
		c.metrics.ObserveRemote(endpoint, elapsed, "read")
		return nil, elapsed, remoteUnavailable(err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.metrics.ObserveRemote(endpoint, elapsed, "auth")
		return nil, elapsed, ErrUnauthorized
	}
	if resp.StatusCode >= 500 {
		c.metrics.ObserveRemote(endpoint, elapsed, "status")
		return nil, elapsed, remoteUnavailable(fmt.Errorf("status %d", resp.StatusCode))
	}
	return raw, elapsed, nil
}

// do decodes the `{success, data}` envelope used by the store-scoped actions.
func (c *HTTPCommerceClient) do(ctx context.Context, method, endpoint string, creds *StoreCredentials, payload, out any) error {
	raw, elapsed, err := c.roundTrip(ctx, method, endpoint, creds, payload)
	if err != nil {
		return err
	}
	var envelope commerceEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.metrics.ObserveRemote(endpoint, elapsed, "decode")
		return remoteUnavailable(fmt.Errorf("decode response: %w", err))
	}
	if !envelope.Success {
		c.metrics.ObserveRemote(endpoint, elapsed, "rejected")
		return remoteRejected(envelope.Error)
	}
	c.metrics.ObserveRemote(endpoint, elapsed, "")
	if out == nil {
		return nil
	}
	if len(envelope.Data) == 0 {
		return remoteUnavailable(fmt.Errorf("empty data for %s", endpoint))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return remoteUnavailable(fmt.Errorf("decode %s data: %w", endpoint, err))
	}
	return nil
}

// doFlat decodes responses that carry their fields flat alongside the success
// flag, the shape the platform uses for claim and wallet status.
func (c *HTTPCommerceClient) doFlat(ctx context.Context, method, endpoint string, creds *StoreCredentials, payload, out any) error {
	raw, elapsed, err := c.roundTrip(ctx, method, endpoint, creds, payload)
	if err != nil {
		return err
	}
	var flat struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &flat); err != nil {
		c.metrics.ObserveRemote(endpoint, elapsed, "decode")
		return remoteUnavailable(fmt.Errorf("decode response: %w", err))
	}
	if !flat.Success {
		c.metrics.ObserveRemote(endpoint, elapsed, "rejected")
		return remoteRejected(flat.Error)
	}
	c.metrics.ObserveRemote(endpoint, elapsed, "")
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return remoteUnavailable(fmt.Errorf("decode %s response: %w", endpoint, err))
	}
	return nil
}

func (c *HTTPCommerceClient) ClaimSecret(ctx context.Context, token string) (*ClaimResult, error) {
	var result ClaimResult
	payload := map[string]string{"claim_token": token}
	if err := c.doFlat(ctx, http.MethodPost, "/store/claim-secret", nil, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPCommerceClient) RegisterStore(ctx context.Context, walletAddress string, walletType WalletType) (*ClaimResult, error) {
	var result ClaimResult
	payload := map[string]string{
		"wallet_address": walletAddress,
		"wallet_type":    string(walletType),
	}
	if err := c.do(ctx, http.MethodPost, "/store/register", nil, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPCommerceClient) CheckConnection(ctx context.Context, creds StoreCredentials) (*ConnectionInfo, error) {
	var info ConnectionInfo
	if err := c.do(ctx, http.MethodGet, "/store/ping", &creds, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPCommerceClient) DeleteStore(ctx context.Context, creds StoreCredentials) error {
	return c.do(ctx, http.MethodPost, "/store/delete", &creds, nil, nil)
}

func (c *HTTPCommerceClient) WalletStatus(ctx context.Context, creds StoreCredentials, address string) (*WalletStatus, error) {
	var status WalletStatus
	if err := c.doFlat(ctx, http.MethodGet, "/wallet/status/"+address, &creds, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPCommerceClient) SaveWallet(ctx context.Context, creds StoreCredentials, walletType WalletType, address string) error {
	payload := map[string]string{
		"wallet_type":    string(walletType),
		"wallet_address": address,
	}
	return c.do(ctx, http.MethodPost, "/wallet", &creds, payload, nil)
}

func (c *HTTPCommerceClient) XamanConnectStart(ctx context.Context, creds StoreCredentials) (*XamanHandshake, error) {
	var handshake XamanHandshake
	if err := c.do(ctx, http.MethodPost, "/xaman/connect", &creds, nil, &handshake); err != nil {
		return nil, err
	}
	return &handshake, nil
}

func (c *HTTPCommerceClient) XamanConnectStatus(ctx context.Context, creds StoreCredentials, payloadUUID string) (*XamanPollStatus, error) {
	var status XamanPollStatus
	if err := c.do(ctx, http.MethodGet, "/xaman/connect/"+payloadUUID, &creds, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPCommerceClient) XamanLoginStart(ctx context.Context) (*XamanHandshake, error) {
	var handshake XamanHandshake
	if err := c.do(ctx, http.MethodPost, "/xaman/login", nil, nil, &handshake); err != nil {
		return nil, err
	}
	return &handshake, nil
}

func (c *HTTPCommerceClient) XamanLoginStatus(ctx context.Context, payloadUUID string) (*XamanPollStatus, error) {
	var status XamanPollStatus
	if err := c.do(ctx, http.MethodGet, "/xaman/login/"+payloadUUID, nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPCommerceClient) SyncSettings(ctx context.Context, creds StoreCredentials, sync StoreSettingsSync) error {
	return c.do(ctx, http.MethodPut, "/store/settings", &creds, sync, nil)
}

func (c *HTTPCommerceClient) AutoSignSigner(ctx context.Context, creds StoreCredentials) (*SignerInfo, error) {
	var info SignerInfo
	if err := c.do(ctx, http.MethodGet, "/autosign/signer", &creds, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPCommerceClient) VerifyAutoSign(ctx context.Context, creds StoreCredentials, limits AutoSignLimits) error {
	return c.do(ctx, http.MethodPost, "/autosign/verify", &creds, limits, nil)
}

func (c *HTTPCommerceClient) RevokeAutoSign(ctx context.Context, creds StoreCredentials) error {
	return c.do(ctx, http.MethodPost, "/autosign/revoke", &creds, nil, nil)
}

func (c *HTTPCommerceClient) ValidatePromo(ctx context.Context, code string) (*PromoValidation, error) {
	var validation PromoValidation
	payload := map[string]string{"code": code}
	if err := c.do(ctx, http.MethodPost, "/promo/validate", nil, payload, &validation); err != nil {
		return nil, err
	}
	return &validation, nil
}

func (c *HTTPCommerceClient) ApplyReferral(ctx context.Context, creds StoreCredentials, code string) error {
	payload := map[string]string{"code": code}
	return c.do(ctx, http.MethodPost, "/store/referral", &creds, payload, nil)
}
