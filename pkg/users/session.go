package users

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
)

// SessionHandlers serves login, logout and the current-user endpoint
type SessionHandlers struct {
	store        *Store
	tokens       *auth.TokenManager
	limiter      middleware.Limiter
	metrics      *observability.Metrics
	secureCookie bool
}

// NewSessionHandlers creates session handlers. limiter and metrics may be nil.
func NewSessionHandlers(store *Store, tokens *auth.TokenManager, limiter middleware.Limiter, metrics *observability.Metrics, secureCookie bool) *SessionHandlers {
	return &SessionHandlers{
		store:        store,
		tokens:       tokens,
		limiter:      limiter,
		metrics:      metrics,
		secureCookie: secureCookie,
	}
}

// RegisterRoutes registers login and logout on public and /auth/me on protected
func (h *SessionHandlers) RegisterRoutes(public, protected *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.limiter != nil {
		login = middleware.RateLimit(h.limiter, func(r *http.Request) string {
			return "login:" + audit.ClientIP(r)
		})(login)
	}

	public.Handle("/auth/login", login).Methods(http.MethodPost)
	public.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	protected.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID int64 `json:"userId"`
}

// login handles POST /auth/login
func (h *SessionHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.Validate(
		httputil.RequireNonEmpty(req.Username, "username"),
		httputil.RequireNonEmpty(req.Password, "password"),
	); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	user, err := h.store.GetByUsername(ctx, req.Username)
	if apperr.HasCode(err, apperr.CodeUserNotFound) {
		h.failed(r, nil, req.Username, "unknown_user")
		httputil.WriteError(w, r, apperr.NotFound(apperr.CodeUserNotFound, "Invalid credentials").WithDetail("unknown username %s", req.Username))
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.failed(r, &user.ID, user.Username, "bad_password")
		httputil.WriteError(w, r, apperr.New(http.StatusUnauthorized, apperr.CodeInvalidCredentials, "Invalid credentials").WithDetail("wrong password for %s", user.Username))
		return
	}

	if !user.IsActive {
		h.failed(r, &user.ID, user.Username, "disabled")
		httputil.WriteError(w, r, apperr.Unauthenticated("Account disabled").WithDetail("disabled user %s attempted login", user.Username))
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	h.recordAttempt("success")
	userID := user.ID
	_ = audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLogin, &userID, user.Username, audit.EventStatusSuccess, "login succeeded")
	observability.FromContext(ctx).WithField("username", user.Username).Info("user logged in")

	_ = httputil.WriteJSON(w, http.StatusOK, loginResponse{UserID: user.ID})
}

func (h *SessionHandlers) failed(r *http.Request, userID *int64, username, outcome string) {
	h.recordAttempt(outcome)
	_ = audit.FromContext(r.Context()).LogAuthentication(r.Context(), audit.EventTypeAuthLoginFailed, userID, username,
		audit.EventStatusFailure, "login failed: "+outcome)
}

func (h *SessionHandlers) recordAttempt(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// logout handles POST /auth/logout
func (h *SessionHandlers) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if claims, err := h.tokens.Validate(middleware.TokenFromRequest(r)); err == nil {
		userID := claims.UserID
		_ = audit.FromContext(r.Context()).LogAuthentication(r.Context(), audit.EventTypeAuthLogout, &userID, "", audit.EventStatusSuccess, "logout")
	}

	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

type meResponse struct {
	UserID             int64     `json:"userId"`
	Username           string    `json:"username"`
	FullName           string    `json:"fullname"`
	Role               auth.Role `json:"role"`
	MustChangePassword bool      `json:"mustChangePassword"`
}

// me handles GET /auth/me
func (h *SessionHandlers) me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		httputil.WriteError(w, r, apperr.Unauthenticated(""))
		return
	}
	httputil.WriteSuccess(w, meResponse{
		UserID:             user.ID,
		Username:           user.Username,
		FullName:           user.FullName,
		Role:               user.Role,
		MustChangePassword: user.MustChangePassword,
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
