// Package httpapi exposes the PlanVault auth and profile endpoints over HTTP.
// Every failure is mapped to a fixed generic status and message; store errors
// and cryptographic internals never reach the caller.
package httpapi

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	pkgcrypto "github.com/degreelab/planvault/internal/crypto"
	"github.com/degreelab/planvault/internal/errs"
	"github.com/degreelab/planvault/internal/model"
	"github.com/degreelab/planvault/internal/service"
)

// Config carries the HTTP-surface tunables.
type Config struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	MaxBodyBytes int64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CookieName:   "pv_session",
		CookieSecure: true,
		SessionTTL:   24 * time.Hour,
		MaxBodyBytes: 1 << 20,
	}
}

// Server wires services into HTTP handlers.
type Server struct {
	log     *zap.Logger
	cfg     Config
	auth    service.AuthService
	profile service.ProfileGateway
	hasher  *pkgcrypto.Hasher
	metrics *Metrics
	promReg *prometheus.Registry
}

// New constructs a Server with injected services.
func New(log *zap.Logger, cfg Config, auth service.AuthService, profile service.ProfileGateway, hasher *pkgcrypto.Hasher) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		log:     log,
		cfg:     cfg,
		auth:    auth,
		profile: profile,
		hasher:  hasher,
		metrics: NewMetrics(reg),
		promReg: reg,
	}
}

// Handler returns the routed handler with recovery, logging, and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, withObservability(s.log, s.metrics, pattern, h))
	}
	route("/api/auth/register", s.handleRegister)
	route("/api/auth/login", s.handleLogin)
	route("/api/auth/check", s.handleCheck)
	route("/api/auth/logout", s.handleLogout)
	route("/api/profile", s.handleProfile)
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	})
	return withRecover(s.log, mux)
}

// ---- wire shapes ----

type envelopeJSON struct {
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}

type registerRequest struct {
	IdentityToken string       `json:"identityToken,omitempty"`
	RawIdentity   string       `json:"rawIdentity,omitempty"`
	Verifier      []byte       `json:"verifier"`
	Salt          []byte       `json:"salt"`
	Envelope      envelopeJSON `json:"envelope"`
}

type loginRequest struct {
	IdentityToken string `json:"identityToken,omitempty"`
	RawIdentity   string `json:"rawIdentity,omitempty"`
	Verifier      []byte `json:"verifier"`
}

type checkResponse struct {
	Authenticated bool `json:"authenticated"`
}

type profileResponse struct {
	IdentityToken    string       `json:"identityToken"`
	PasswordVerifier []byte       `json:"passwordVerifier"`
	Salt             []byte       `json:"salt"`
	Envelope         envelopeJSON `json:"envelope"`
}

type updateRequest struct {
	Envelope envelopeJSON `json:"envelope"`
}

// ---- handlers ----

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, ok := s.identityToken(req.IdentityToken, req.RawIdentity)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing identity")
		return
	}
	rec := &model.CredentialRecord{
		IdentityToken:    token,
		PasswordVerifier: req.Verifier,
		Salt:             req.Salt,
		Envelope:         model.Envelope{IV: req.Envelope.IV, Ciphertext: req.Envelope.Ciphertext},
	}
	if err := s.auth.Provision(r.Context(), rec); err != nil {
		switch {
		case errors.Is(err, errs.ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "identity already exists")
		case errors.Is(err, errs.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			writeError(w, http.StatusBadRequest, "invalid request")
		}
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, ok := s.identityToken(req.IdentityToken, req.RawIdentity)
	if !ok || len(req.Verifier) == 0 {
		// shape errors are still reported as invalid credentials so the
		// response never hints at whether an identity exists
		s.metrics.LoginsFailed.Inc()
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sessionToken, sess, err := s.auth.Login(r.Context(), token, req.Verifier, clientIP(r))
	if err != nil {
		s.metrics.LoginsFailed.Inc()
		switch {
		case errors.Is(err, errs.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many attempts")
		case errors.Is(err, errs.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		}
		return
	}

	s.metrics.LoginsOK.Inc()
	s.setSessionCookie(w, sessionToken, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.auth.Check(s.sessionToken(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Authenticated: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.auth.Logout(s.sessionToken(r))
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionToken := s.sessionToken(r)
	sess, err := s.auth.Check(sessionToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.profile.GetEnvelope(r.Context(), sessionToken, sess.IdentityToken)
		if err != nil {
			s.writeProfileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{
			IdentityToken:    rec.IdentityToken,
			PasswordVerifier: rec.PasswordVerifier,
			Salt:             rec.Salt,
			Envelope:         envelopeJSON{IV: rec.Envelope.IV, Ciphertext: rec.Envelope.Ciphertext},
		})

	case http.MethodPut:
		var req updateRequest
		if err := decodeJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		env := model.Envelope{IV: req.Envelope.IV, Ciphertext: req.Envelope.Ciphertext}
		if err := s.profile.UpdateEnvelope(r.Context(), sessionToken, sess.IdentityToken, env); err != nil {
			s.writeProfileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})

	case http.MethodDelete:
		if err := s.profile.Delete(r.Context(), sessionToken, sess.IdentityToken); err != nil {
			s.writeProfileError(w, err)
			return
		}
		s.clearSessionCookie(w)
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

func (s *Server) writeProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
	case errors.Is(err, errs.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeError(w, http.StatusBadRequest, "invalid request")
	}
}

// ---- helpers ----

// identityToken resolves the lookup token from a request that carries either
// the already-hashed token or the raw identity. The raw identity is hashed
// immediately and never stored or logged.
func (s *Server) identityToken(token, raw string) (string, bool) {
	if token != "" {
		if !pkgcrypto.ValidToken(token) {
			return "", false
		}
		return token, true
	}
	if raw != "" {
		return s.hasher.Token(raw), true
	}
	return "", false
}

func (s *Server) sessionToken(r *http.Request) string {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
