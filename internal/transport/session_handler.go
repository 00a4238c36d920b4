package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/middleware"
	"pos-backoffice/internal/service"
	"pos-backoffice/internal/session"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,mailbox"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is a cashier's self-registration.
type RegisterRequest struct {
	GivenNames      string `json:"given_names" validate:"required"`
	PaternalSurname string `json:"paternal_surname" validate:"required"`
	MaternalSurname string `json:"maternal_surname"`
	Email           string `json:"email" validate:"required"`
	Phone           string `json:"phone" validate:"required"`
	Gender          string `json:"gender"`
	Password        string `json:"password" validate:"required"`
}

func (r RegisterRequest) user() *domain.User {
	return &domain.User{
		GivenNames:      r.GivenNames,
		PaternalSurname: r.PaternalSurname,
		MaternalSurname: r.MaternalSurname,
		Email:           r.Email,
		Phone:           r.Phone,
		Gender:          domain.Gender(r.Gender),
		Password:        r.Password,
	}
}

// SessionResponse describes the active session.
type SessionResponse struct {
	SessionID   string      `json:"session_id"`
	StartedAt   time.Time   `json:"started_at"`
	AccessLevel string      `json:"access_level"`
	User        domain.User `json:"user"`
	Token       string      `json:"token,omitempty"`
}

func newSessionResponse(sess *session.Session, token string) SessionResponse {
	return SessionResponse{
		SessionID:   sess.ID.String(),
		StartedAt:   sess.StartedAt,
		AccessLevel: session.AccessLevelOf(sess.User.Role),
		User:        sess.User,
		Token:       token,
	}
}

// SessionHandler logs staff in and out.
type SessionHandler struct {
	users  service.UserService
	logger *zap.Logger
}

func NewSessionHandler(users service.UserService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{users: users, logger: logger}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Route("/api/session", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if routes.Limiter != nil {
				r.Use(routes.Limiter)
			}
			r.Post("/", h.Login)
			r.Post("/register", h.Register)
		})
		r.Get("/email-available", h.EmailAvailable)

		r.Group(func(r chi.Router) {
			r.Use(routes.Auth)
			r.Get("/", h.Current)
			r.Post("/logout", h.Logout)
		})
	})
}

// Login authenticates and replaces the process session.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "Login validation failed", err)
		return
	}

	sess, token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, h.logger, "Login failed", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newSessionResponse(sess, token))
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "Registration validation failed", err)
		return
	}

	user, err := h.users.Register(r.Context(), req.user())
	if err != nil {
		fail(w, h.logger, "Registration failed", err)
		return
	}

	h.logger.Info("User registered", zap.Int64("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, user)
}

func (h *SessionHandler) EmailAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := h.users.EmailAvailable(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		fail(w, h.logger, "Email availability check failed", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		fail(w, h.logger, "No session in context", auth.ErrNotAuthenticated)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newSessionResponse(sess, ""))
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		fail(w, h.logger, "No session in context", auth.ErrNotAuthenticated)
		return
	}
	if !h.users.Logout(r.Context(), sess.ID) {
		fail(w, h.logger, "Session already replaced", auth.ErrNotAuthenticated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
