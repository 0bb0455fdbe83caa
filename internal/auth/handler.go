package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/facturia/facturia/internal/auditlog"
	"github.com/facturia/facturia/internal/authz"
	"github.com/facturia/facturia/internal/platform/httpx"
	"github.com/facturia/facturia/internal/shared"
)

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// AuditRecorder appends audit events. *auditlog.Writer satisfies it.
type AuditRecorder interface {
	Info(ctx context.Context, message string, fields auditlog.Context) error
	Warning(ctx context.Context, message string, fields auditlog.Context) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	audit          AuditRecorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, audit AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		audit:          audit,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(loginRateLimit, loginRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.With(limiter).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type sessionResponse struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Role     authz.Role `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(w, r, &creds); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(creds); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		httpx.ValidationProblem(w, fields)
		return
	}

	meta := shared.RequestMetaFrom(r)
	acc, err := h.service.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("authenticate", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		h.record(r.Context(), auditlog.LevelWarning, "Login failed", auditlog.Context{
			auditlog.KeyIPAddress: meta.IPAddress,
			auditlog.KeyUserAgent: meta.UserAgent,
			"attempted_username":  creds.Username,
		})
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid username or password")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}
	sess.SignIn(h.sessionManager, acc.ID)
	h.record(r.Context(), auditlog.LevelInfo, "User logged in", auditlog.Context{
		auditlog.KeyAction:        auditlog.ActionLogin,
		auditlog.KeyActorUserID:   acc.ID,
		auditlog.KeyActorUsername: acc.Username,
		auditlog.KeyIPAddress:     meta.IPAddress,
		auditlog.KeyUserAgent:     meta.UserAgent,
	})
	httpx.JSON(w, http.StatusOK, sessionResponse{ID: acc.ID, Username: acc.Username, Role: acc.Role})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if id := sess.ActorID(); id != 0 {
		meta := shared.RequestMetaFrom(r)
		h.record(r.Context(), auditlog.LevelInfo, "User logged out", auditlog.Context{
			auditlog.KeyAction:      auditlog.ActionLogout,
			auditlog.KeyActorUserID: id,
			auditlog.KeyIPAddress:   meta.IPAddress,
			auditlog.KeyUserAgent:   meta.UserAgent,
		})
	}
	h.sessionManager.Destroy(sess)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{ID: actor.ID, Role: actor.Role})
}

func (h *Handler) record(ctx context.Context, level auditlog.Level, message string, fields auditlog.Context) {
	if h.audit == nil {
		return
	}
	var err error
	if level == auditlog.LevelInfo {
		err = h.audit.Info(ctx, message, fields)
	} else {
		err = h.audit.Warning(ctx, message, fields)
	}
	if err != nil {
		h.logger.Warn("audit write failed", slog.String("message", message), slog.Any("error", err))
	}
}
