package merchantd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the admin configuration API over HTTP.
type Server struct {
	svc  *Service
	auth *Authenticator
	rl   *rateLimiter
	log  *slog.Logger
}

// NewServer builds the admin API server.
func NewServer(svc *Service, auth *Authenticator, rlCfg RateLimitConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, auth: auth, rl: newRateLimiter(rlCfg), log: log}
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.rl.Close()
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(s.rl.Middleware)

		r.Get("/settings", s.handleSettings)

		r.Route("/store", func(r chi.Router) {
			r.Post("/claim", s.handleClaim)
			r.Post("/register", s.handleRegister)
			r.Get("/connection", s.handleConnection)
			r.Post("/disconnect", s.handleDisconnect)
			r.Post("/delete", s.handleDelete)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/status", s.handleWalletStatus)
			r.Post("/xaman/connect", s.handleXamanConnect)
			r.Post("/xaman/connect/wait", s.handleXamanWait)
			r.Post("/xaman/login", s.handleXamanLogin)
			r.Post("/xaman/login/wait", s.handleXamanLoginWait)
			r.Post("/crossmark", s.handleCrossmark)
		})

		r.Route("/payout", func(r chi.Router) {
			r.Get("/modes", s.handlePayoutModes)
			r.Put("/mode", s.handleSetPayoutMode)
		})

		r.Route("/autosign", func(r chi.Router) {
			r.Get("/", s.handleAutoSign)
			r.Get("/signer", s.handleAutoSignSigner)
			r.Post("/terms", s.handleAcceptTerms)
			r.Put("/limits", s.handleSetLimits)
			r.Post("/verify", s.handleEnableAutoSign)
			r.Post("/revoke", s.handleRevokeAutoSign)
		})

		r.Get("/rates", s.handleRates)
		r.Put("/rates", s.handleUpdateRates)

		r.Get("/batching", s.handleBatching)
		r.Put("/batching", s.handleUpdateBatching)

		r.Post("/promo/validate", s.handleValidatePromo)
		r.Post("/referral", s.handleApplyReferral)
	})

	return r
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	redirect, err := s.svc.ClaimSecret(r.Context(), req.Token)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"redirect_url": redirect})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Settings()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, view)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string     `json:"wallet_address"`
		WalletType    WalletType `json:"wallet_type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.RegisterStore(r.Context(), req.WalletAddress, req.WalletType); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]bool{"registered": true})
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.CheckConnection(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, info)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Disconnect(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]bool{"disconnected": true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmation string `json:"confirmation"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.DeletePermanently(r.Context(), req.Confirmation); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]bool{"deleted": true})
}

func (s *Server) handleWalletStatus(w http.ResponseWriter, r *http.Request) {
	overview, err := s.svc.WalletOverview(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, overview)
}

func (s *Server) handleXamanConnect(w http.ResponseWriter, r *http.Request) {
	handshake, err := s.svc.XamanConnectStart(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, handshake)
}

func (s *Server) handleXamanWait(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PayloadUUID string `json:"payload_uuid"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PayloadUUID == "" {
		writeFailure(w, http.StatusBadRequest, "payload_uuid is required")
		return
	}
	status, err := s.svc.XamanConnectWait(r.Context(), req.PayloadUUID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, status)
}

func (s *Server) handleXamanLogin(w http.ResponseWriter, r *http.Request) {
	handshake, err := s.svc.XamanLoginStart(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, handshake)
}

func (s *Server) handleXamanLoginWait(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PayloadUUID string `json:"payload_uuid"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PayloadUUID == "" {
		writeFailure(w, http.StatusBadRequest, "payload_uuid is required")
		return
	}
	status, err := s.svc.XamanLoginWait(r.Context(), req.PayloadUUID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, status)
}

func (s *Server) handleCrossmark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.SetCrossmarkWallet(r.Context(), req.Address); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]bool{"linked": true})
}

func (s *Server) handlePayoutModes(w http.ResponseWriter, r *http.Request) {
	options, err := s.svc.PayoutModes()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, options)
}

func (s *Server) handleSetPayoutMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode PayoutMode `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.SetPayoutMode(r.Context(), req.Mode); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"mode": string(req.Mode)})
}

func (s *Server) handleAutoSign(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.AutoSign()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, status)
}

func (s *Server) handleAutoSignSigner(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.AutoSignSigner(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, info)
}

func (s *Server) handleAcceptTerms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Consent bool `json:"consent"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.AcceptAutoSignTerms(r.Context(), req.Consent); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"state": string(StateTermsAccepted)})
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var limits AutoSignLimits
	if !decodeBody(w, r, &limits) {
		return
	}
	if err := s.svc.SetAutoSignLimits(r.Context(), limits); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, limits)
}

func (s *Server) handleEnableAutoSign(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EnableAutoSign(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"state": string(StateEnabled)})
}

func (s *Server) handleRevokeAutoSign(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RevokeAutoSign(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"state": string(StateLimitsSet)})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.svc.Rates()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]RateTable{"rates": rates})
}

func (s *Server) handleUpdateRates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rates RateTable `json:"rates"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.svc.UpdateRates(r.Context(), req.Rates)
	if err != nil {
		s.respondError(w, err)
		return
	}
	response := struct {
		Rates      RateTable `json:"rates"`
		SumWarning bool      `json:"sum_warning"`
		Rejected   []string  `json:"rejected,omitempty"`
	}{Rates: result.Rates, SumWarning: result.SumWarning}
	for _, e := range result.Rejected {
		response.Rejected = append(response.Rejected, e.Error())
	}
	writeSuccess(w, response)
}

func (s *Server) handleBatching(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Batching()
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, settings)
}

func (s *Server) handleUpdateBatching(w http.ResponseWriter, r *http.Request) {
	var settings BatchingSettings
	if !decodeBody(w, r, &settings) {
		return
	}
	if err := s.svc.UpdateBatching(r.Context(), settings); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, settings)
}

func (s *Server) handleValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	validation, err := s.svc.ValidatePromo(r.Context(), req.Code)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, validation)
}

func (s *Server) handleApplyReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.ApplyReferral(r.Context(), req.Code); err != nil {
		s.respondError(w, err)
		return
	}
	writeSuccess(w, map[string]bool{"applied": true})
}

// respondError maps domain errors onto HTTP statuses. Transport failures to
// the commerce platform are logged verbatim but surfaced generically so
// internal endpoints never leak to the admin UI.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidTokenFormat),
		errors.Is(err, ErrInvalidCodeFormat),
		errors.Is(err, ErrInvalidRate),
		errors.Is(err, ErrOutOfRange),
		errors.Is(err, ErrConfirmationMismatch):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrStateViolation),
		errors.Is(err, ErrReferralAlreadySet),
		errors.Is(err, ErrModeUnsupported),
		errors.Is(err, ErrNotConnected):
		writeFailure(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnauthorized):
		writeFailure(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrRemoteRejected):
		writeFailure(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, ErrPollTimeout):
		writeFailure(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, ErrRemoteUnavailable), errors.Is(err, ErrStatusUnavailable):
		s.log.Error("commerce platform call failed", "error", err)
		writeFailure(w, http.StatusBadGateway, "connection error, please retry")
	default:
		s.log.Error("internal error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// apiEnvelope is the response shape for every endpoint: data carries the
// payload on success and the human-readable message on failure.
type apiEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(apiEnvelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiEnvelope{Success: false, Data: message})
}
