package merchantd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dltpays/observability"
)

// DeleteConfirmationPhrase must be supplied verbatim before the store and
// all of its data are removed from the commerce platform.
const DeleteConfirmationPhrase = "PERMANENTLY DELETE"

// Service coordinates store onboarding and payout configuration between the
// local settings store and the commerce platform.
type Service struct {
	store    *SettingsStore
	commerce CommerceClient
	poll     PollConfig
	adminURL string
	log      *slog.Logger
	metrics  *observability.MerchantdMetrics
}

// NewService wires the orchestration layer. adminURL is the canonical admin
// page the claim flow redirects to once the one-time token is consumed.
func NewService(store *SettingsStore, commerce CommerceClient, poll PollConfig, adminURL string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		commerce: commerce,
		poll:     poll,
		adminURL: adminURL,
		log:      log,
		metrics:  observability.Merchantd(),
	}
}

func (s *Service) creds(record *StoreSettings) (StoreCredentials, error) {
	if !record.Connected || record.StoreID == "" || record.APISecret == "" {
		return StoreCredentials{}, ErrNotConnected
	}
	return StoreCredentials{StoreID: record.StoreID, APISecret: record.APISecret}, nil
}

// ClaimSecret exchanges a one-time claim token for store credentials. The
// token shape is validated before any network call so malformed input never
// consumes the token remotely. Returns the post-claim redirect target, the
// canonical admin URL with the token stripped.
func (s *Service) ClaimSecret(ctx context.Context, token string) (string, error) {
	if err := ValidateClaimToken(token); err != nil {
		s.metrics.ObserveClaim("invalid_format")
		return "", err
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return "", err
	}
	if record.Connected {
		s.metrics.ObserveClaim("already_connected")
		return "", fmt.Errorf("%w: store already connected", ErrStateViolation)
	}
	result, err := s.commerce.ClaimSecret(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, ErrRemoteRejected):
			s.metrics.ObserveClaim("rejected")
		default:
			s.metrics.ObserveClaim("unavailable")
		}
		return "", err
	}
	record.StoreID = result.StoreID
	record.APISecret = result.APISecret
	record.Connected = true
	record.WalletAddress = result.WalletAddress
	if result.WalletType.Valid() {
		record.WalletType = string(result.WalletType)
	} else {
		record.WalletType = string(WalletWeb3Auth)
	}
	if err := s.store.Save(record); err != nil {
		return "", err
	}
	s.metrics.ObserveClaim("success")
	s.log.Info("store credentials claimed", "store_id", result.StoreID)
	return s.adminURL, nil
}

// RegisterStore creates a store registration directly from a linked wallet,
// the path taken by Xaman login and Crossmark without a claim token.
func (s *Service) RegisterStore(ctx context.Context, walletAddress string, walletType WalletType) error {
	if walletAddress == "" {
		return fmt.Errorf("%w: wallet address required", ErrOutOfRange)
	}
	if !walletType.Valid() {
		return fmt.Errorf("%w: unknown wallet type %q", ErrOutOfRange, walletType)
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	if record.Connected {
		return fmt.Errorf("%w: store already connected", ErrStateViolation)
	}
	result, err := s.commerce.RegisterStore(ctx, walletAddress, walletType)
	if err != nil {
		return err
	}
	record.StoreID = result.StoreID
	record.APISecret = result.APISecret
	record.Connected = true
	record.WalletType = string(walletType)
	record.WalletAddress = walletAddress
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.log.Info("store registered", "store_id", result.StoreID, "wallet_type", walletType)
	return nil
}

// CheckConnection verifies the stored credentials against the commerce
// platform. A remote failure leaves the local connected flag untouched since
// an unreachable platform says nothing about registration validity.
func (s *Service) CheckConnection(ctx context.Context) (*ConnectionInfo, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	creds, err := s.creds(record)
	if err != nil {
		return nil, err
	}
	info, err := s.commerce.CheckConnection(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRemoteRejected) {
			record.Connected = false
			if saveErr := s.store.Save(record); saveErr != nil {
				return nil, saveErr
			}
		}
		return nil, err
	}
	if info.WalletType.Valid() {
		record.WalletType = string(info.WalletType)
	}
	if info.WalletAddress != "" {
		record.WalletAddress = info.WalletAddress
	}
	if err := s.store.Save(record); err != nil {
		return nil, err
	}
	return info, nil
}

// Disconnect drops the local credentials without touching the remote
// registration, so the store can reconnect later. Idempotent.
func (s *Service) Disconnect(ctx context.Context) error {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	if !record.Connected && record.StoreID == "" {
		return nil
	}
	record.Connected = false
	record.StoreID = ""
	record.APISecret = ""
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.log.Info("store disconnected")
	return nil
}

// DeletePermanently removes the store and its data from the commerce
// platform, then resets local configuration to defaults. The confirmation
// phrase must match exactly.
func (s *Service) DeletePermanently(ctx context.Context, confirmation string) error {
	if confirmation != DeleteConfirmationPhrase {
		return ErrConfirmationMismatch
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	creds, err := s.creds(record)
	if err != nil {
		return err
	}
	if err := s.commerce.DeleteStore(ctx, creds); err != nil {
		return err
	}
	if err := s.store.Reset(); err != nil {
		return err
	}
	s.log.Info("store permanently deleted", "store_id", creds.StoreID)
	return nil
}

// WalletOverview combines the remote wallet status with the derived
// onboarding step.
type WalletOverview struct {
	Status WalletStatus   `json:"status"`
	Step   OnboardingStep `json:"step"`
	Ready  bool           `json:"ready"`
}

// WalletOverview fetches the wallet status and resolves the next onboarding
// step.
func (s *Service) WalletOverview(ctx context.Context) (*WalletOverview, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	creds, err := s.creds(record)
	if err != nil {
		return nil, err
	}
	if record.WalletAddress == "" {
		return nil, fmt.Errorf("%w: no wallet linked", ErrNotConnected)
	}
	status, err := s.commerce.WalletStatus(ctx, creds, record.WalletAddress)
	if err != nil {
		if errors.Is(err, ErrRemoteUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
		}
		return nil, err
	}
	return &WalletOverview{Status: *status, Step: status.Step(), Ready: status.Ready()}, nil
}

// XamanConnectStart begins a Xaman wallet handshake and returns the QR
// payload the merchant scans.
func (s *Service) XamanConnectStart(ctx context.Context) (*XamanHandshake, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	creds, err := s.creds(record)
	if err != nil {
		return nil, err
	}
	return s.commerce.XamanConnectStart(ctx, creds)
}

// XamanConnectWait polls a pending Xaman handshake until it reaches a
// terminal status or the attempt ceiling is hit. On success the wallet
// address is persisted locally and pushed to the commerce platform.
func (s *Service) XamanConnectWait(ctx context.Context, payloadUUID string) (*XamanPollStatus, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	creds, err := s.creds(record)
	if err != nil {
		return nil, err
	}

	poller := NewPoller(s.poll.ConnectInterval.Duration, s.poll.MaxAttempts)
	var final *XamanPollStatus
	err = poller.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		status, err := s.commerce.XamanConnectStatus(ctx, creds, payloadUUID)
		if err != nil {
			return false, err
		}
		if status.Terminal() {
			final = status
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		if errors.Is(err, ErrPollTimeout) {
			s.metrics.RecordPollTimeout()
			s.log.Warn("xaman handshake timed out", "payload", payloadUUID)
		}
		return nil, err
	}

	if final.Status == XamanStatusConnected && final.Address != "" {
		if err := s.commerce.SaveWallet(ctx, creds, WalletXaman, final.Address); err != nil {
			return nil, err
		}
		record.WalletType = string(WalletXaman)
		record.WalletAddress = final.Address
		if record.PayoutMode == string(ModeAuto) {
			// Xaman cannot auto-sign, so a previous Crossmark selection
			// falls back to manual.
			record.PayoutMode = string(ModeManual)
		}
		if err := s.store.Save(record); err != nil {
			return nil, err
		}
		s.log.Info("xaman wallet linked", "address", final.Address)
	}
	return final, nil
}

// XamanLoginStart begins a Xaman login handshake. Login needs no store
// credentials since it is how an unregistered merchant first authenticates.
func (s *Service) XamanLoginStart(ctx context.Context) (*XamanHandshake, error) {
	return s.commerce.XamanLoginStart(ctx)
}

// XamanLoginWait polls a pending Xaman login until it reaches a terminal
// status or the attempt ceiling is hit. Login polls on a shorter interval
// than connect since the payload is already open on the merchant's phone.
// A successful login for an unregistered store registers it.
func (s *Service) XamanLoginWait(ctx context.Context, payloadUUID string) (*XamanPollStatus, error) {
	poller := NewPoller(s.poll.LoginInterval.Duration, s.poll.MaxAttempts)
	var final *XamanPollStatus
	err := poller.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		status, err := s.commerce.XamanLoginStatus(ctx, payloadUUID)
		if err != nil {
			return false, err
		}
		if status.Terminal() {
			final = status
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		if errors.Is(err, ErrPollTimeout) {
			s.metrics.RecordPollTimeout()
			s.log.Warn("xaman login timed out", "payload", payloadUUID)
		}
		return nil, err
	}

	if final.Status == XamanStatusConnected && final.Address != "" {
		record, err := s.store.LoadOrInit()
		if err != nil {
			return nil, err
		}
		if !record.Connected {
			if err := s.RegisterStore(ctx, final.Address, WalletXaman); err != nil {
				return nil, err
			}
		}
	}
	return final, nil
}

// SetCrossmarkWallet records a wallet linked through the Crossmark browser
// extension. The extension completes its handshake client side and reports
// the resulting address.
func (s *Service) SetCrossmarkWallet(ctx context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("%w: wallet address required", ErrOutOfRange)
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	creds, err := s.creds(record)
	if err != nil {
		return err
	}
	if err := s.commerce.SaveWallet(ctx, creds, WalletCrossmark, address); err != nil {
		return err
	}
	record.WalletType = string(WalletCrossmark)
	record.WalletAddress = address
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.log.Info("crossmark wallet linked", "address", address)
	return nil
}

// PayoutModes lists the payout modes for the connected wallet with the
// current selection marked.
func (s *Service) PayoutModes() ([]ModeOption, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	return ModeOptions(WalletType(record.WalletType), PayoutMode(record.PayoutMode)), nil
}

// SetPayoutMode switches the payout mode after checking the connected wallet
// supports it.
func (s *Service) SetPayoutMode(ctx context.Context, mode PayoutMode) error {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	creds, err := s.creds(record)
	if err != nil {
		return err
	}
	if err := ValidateModeChange(WalletType(record.WalletType), mode); err != nil {
		return err
	}
	record.PayoutMode = string(mode)
	if err := s.syncSettings(ctx, creds, record); err != nil {
		return err
	}
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.metrics.RecordModeSwitch(string(mode))
	s.log.Info("payout mode changed", "mode", mode)
	return nil
}

// AutoSignStatus reports the current policy state and limits.
type AutoSignStatus struct {
	State  AutoSignState  `json:"state"`
	Limits AutoSignLimits `json:"limits"`
}

// AutoSign returns the current policy state and limits.
func (s *Service) AutoSign() (*AutoSignStatus, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	return &AutoSignStatus{
		State:  record.AutoSignState(),
		Limits: AutoSignLimits{MaxSingle: record.AutoSignMaxSingle, DailyLimit: record.AutoSignDailyLimit},
	}, nil
}

// AcceptAutoSignTerms records the merchant's consent to automatic signing.
// Consent must be explicit; an unchecked box is not a state transition.
func (s *Service) AcceptAutoSignTerms(ctx context.Context, consent bool) error {
	if !consent {
		return fmt.Errorf("%w: consent is required", ErrOutOfRange)
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	from := record.AutoSignState()
	if err := ValidateAutoSignTransition(from, StateTermsAccepted); err != nil {
		return err
	}
	record.AutoSignTermsAccepted = true
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.metrics.RecordTransition(string(from), string(StateTermsAccepted))
	return nil
}

// SetAutoSignLimits stores the spend ceilings. Limits may be edited after
// enablement without dropping out of the enabled state.
func (s *Service) SetAutoSignLimits(ctx context.Context, limits AutoSignLimits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	from := record.AutoSignState()
	switch from {
	case StateTermsAccepted, StateLimitsSet, StateEnabled:
	default:
		return fmt.Errorf("%w: limits require accepted terms", ErrStateViolation)
	}
	record.AutoSignMaxSingle = limits.MaxSingle
	record.AutoSignDailyLimit = limits.DailyLimit
	record.AutoSignLimitsSet = true
	if err := s.store.Save(record); err != nil {
		return err
	}
	if to := record.AutoSignState(); to != from {
		s.metrics.RecordTransition(string(from), string(to))
	}
	return nil
}

// AutoSignSigner returns the platform signer address the wallet must add to
// its on-chain signer list before verification can succeed.
func (s *Service) AutoSignSigner(ctx context.Context) (*SignerInfo, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	creds, err := s.creds(record)
	if err != nil {
		return nil, err
	}
	return s.commerce.AutoSignSigner(ctx, creds)
}

// EnableAutoSign asks the platform to verify its signer is on the wallet's
// signer list and, on success, activates automatic signing. Verification
// failure keeps the policy in LIMITS_SET and is retryable.
func (s *Service) EnableAutoSign(ctx context.Context) error {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	creds, err := s.creds(record)
	if err != nil {
		return err
	}
	from := record.AutoSignState()
	if err := ValidateAutoSignTransition(from, StateEnabled); err != nil {
		return err
	}
	if !WalletType(record.WalletType).SupportsAutoSign() {
		return fmt.Errorf("%w: %s", ErrModeUnsupported, walletLabel(WalletType(record.WalletType)))
	}
	limits := AutoSignLimits{MaxSingle: record.AutoSignMaxSingle, DailyLimit: record.AutoSignDailyLimit}
	if err := s.commerce.VerifyAutoSign(ctx, creds, limits); err != nil {
		return err
	}
	record.AutoSignEnabled = true
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.metrics.RecordTransition(string(from), string(StateEnabled))
	s.log.Info("auto-sign enabled", "max_single", limits.MaxSingle, "daily_limit", limits.DailyLimit)
	return nil
}

// RevokeAutoSign deactivates automatic signing. Limits and consent are kept
// so re-enabling only needs the final confirmation step.
func (s *Service) RevokeAutoSign(ctx context.Context) error {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	creds, err := s.creds(record)
	if err != nil {
		return err
	}
	from := record.AutoSignState()
	if err := ValidateAutoSignTransition(from, StateLimitsSet); err != nil {
		return err
	}
	if err := s.commerce.RevokeAutoSign(ctx, creds); err != nil {
		return err
	}
	record.AutoSignEnabled = false
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.metrics.RecordTransition(string(from), string(StateLimitsSet))
	s.log.Info("auto-sign revoked")
	return nil
}

// RatesResult reports the outcome of a commission table update.
type RatesResult struct {
	Rates      RateTable    `json:"rates"`
	Rejected   []*RateError `json:"-"`
	SumWarning bool         `json:"sum_warning"`
}

// Rates returns the current commission table.
func (s *Service) Rates() (RateTable, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return RateTable{}, err
	}
	return record.Rates(), nil
}

// UpdateRates merges the proposed commission table onto the current one.
// Invalid levels keep their previous values and are reported back; valid
// levels are saved and synced even when siblings fail.
func (s *Service) UpdateRates(ctx context.Context, proposed RateTable) (*RatesResult, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	creds, err := s.creds(record)
	if err != nil {
		return nil, err
	}
	merged, rejected, warn := MergeRates(record.Rates(), proposed)
	record.SetRates(merged)
	if err := s.syncSettings(ctx, creds, record); err != nil {
		return nil, err
	}
	if err := s.store.Save(record); err != nil {
		return nil, err
	}
	if warn {
		s.metrics.RecordRateSumWarning()
		s.log.Warn("commission total exceeds 50 percent", "total", merged.Sum())
	}
	return &RatesResult{Rates: merged, Rejected: rejected, SumWarning: warn}, nil
}

// BatchingSettings combines payout batching with the attribution window.
type BatchingSettings struct {
	Policy     BatchingPolicy `json:"policy"`
	CookieDays int            `json:"cookie_days"`
}

// Batching returns the current payout batching configuration.
func (s *Service) Batching() (*BatchingSettings, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	return &BatchingSettings{
		Policy:     BatchingPolicy{MinThreshold: record.MinPayoutThreshold, ScheduleDays: record.PayoutScheduleDays},
		CookieDays: record.CookieDays,
	}, nil
}

// UpdateBatching validates and stores the payout batching policy and cookie
// window, then syncs them to the commerce platform.
func (s *Service) UpdateBatching(ctx context.Context, settings BatchingSettings) error {
	if err := settings.Policy.Validate(); err != nil {
		return err
	}
	if err := ValidateCookieDays(settings.CookieDays); err != nil {
		return err
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	creds, err := s.creds(record)
	if err != nil {
		return err
	}
	record.MinPayoutThreshold = settings.Policy.MinThreshold
	record.PayoutScheduleDays = settings.Policy.ScheduleDays
	record.CookieDays = settings.CookieDays
	if err := s.syncSettings(ctx, creds, record); err != nil {
		return err
	}
	return s.store.Save(record)
}

// ValidatePromo checks a promo code against the commerce platform after
// normalising it locally.
func (s *Service) ValidatePromo(ctx context.Context, code string) (*PromoValidation, error) {
	normalized, err := NormalizePromoCode(code)
	if err != nil {
		return nil, err
	}
	validation, err := s.commerce.ValidatePromo(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if validation.Valid {
		record, loadErr := s.store.LoadOrInit()
		if loadErr != nil {
			return nil, loadErr
		}
		record.PromoCode = normalized
		if saveErr := s.store.Save(record); saveErr != nil {
			return nil, saveErr
		}
	}
	return validation, nil
}

// ApplyReferral records who referred this store. The code can only be set
// once.
func (s *Service) ApplyReferral(ctx context.Context, code string) error {
	normalized, err := NormalizePromoCode(code)
	if err != nil {
		return err
	}
	record, err := s.store.LoadOrInit()
	if err != nil {
		return err
	}
	if record.ReferralCode != "" {
		return ErrReferralAlreadySet
	}
	creds, err := s.creds(record)
	if err != nil {
		return err
	}
	if err := s.commerce.ApplyReferral(ctx, creds, normalized); err != nil {
		return err
	}
	record.ReferralCode = normalized
	if err := s.store.Save(record); err != nil {
		return err
	}
	s.log.Info("referral code applied", "code", normalized)
	return nil
}

// SettingsView is the configuration snapshot served to the admin UI. The API
// secret is write-only and never leaves the service.
type SettingsView struct {
	Connected     bool           `json:"connected"`
	StoreID       string         `json:"store_id"`
	WalletType    WalletType     `json:"wallet_type"`
	WalletAddress string         `json:"wallet_address"`
	PayoutMode    PayoutMode     `json:"payout_mode"`
	Rates         RateTable      `json:"rates"`
	Batching      BatchingPolicy `json:"batching"`
	CookieDays    int            `json:"cookie_days"`
	AutoSign      AutoSignStatus `json:"auto_sign"`
	PromoCode     string         `json:"promo_code,omitempty"`
	ReferralCode  string         `json:"referral_code,omitempty"`
}

// Settings returns the full configuration snapshot.
func (s *Service) Settings() (*SettingsView, error) {
	record, err := s.store.LoadOrInit()
	if err != nil {
		return nil, err
	}
	return &SettingsView{
		Connected:     record.Connected,
		StoreID:       record.StoreID,
		WalletType:    WalletType(record.WalletType),
		WalletAddress: record.WalletAddress,
		PayoutMode:    PayoutMode(record.PayoutMode),
		Rates:         record.Rates(),
		Batching: BatchingPolicy{
			MinThreshold: record.MinPayoutThreshold,
			ScheduleDays: record.PayoutScheduleDays,
		},
		CookieDays: record.CookieDays,
		AutoSign: AutoSignStatus{
			State:  record.AutoSignState(),
			Limits: AutoSignLimits{MaxSingle: record.AutoSignMaxSingle, DailyLimit: record.AutoSignDailyLimit},
		},
		PromoCode:    record.PromoCode,
		ReferralCode: record.ReferralCode,
	}, nil
}

func (s *Service) syncSettings(ctx context.Context, creds StoreCredentials, record *StoreSettings) error {
	sync := StoreSettingsSync{
		Rates: record.Rates(),
		Batching: BatchingPolicy{
			MinThreshold: record.MinPayoutThreshold,
			ScheduleDays: record.PayoutScheduleDays,
		},
		CookieDays:   record.CookieDays,
		PayoutMode:   PayoutMode(record.PayoutMode),
		ReferralCode: record.ReferralCode,
	}
	return s.commerce.SyncSettings(ctx, creds, sync)
}
