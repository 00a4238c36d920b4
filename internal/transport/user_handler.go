package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/middleware"
	"pos-backoffice/internal/service"
	"pos-backoffice/internal/session"
)

// UserRequest is an administrator's create or update payload. On update an
// empty password keeps the stored one.
type UserRequest struct {
	Role            string `json:"role" validate:"required"`
	GivenNames      string `json:"given_names" validate:"required"`
	PaternalSurname string `json:"paternal_surname" validate:"required"`
	MaternalSurname string `json:"maternal_surname"`
	Email           string `json:"email" validate:"required"`
	Phone           string `json:"phone" validate:"required"`
	Gender          string `json:"gender"`
	Password        string `json:"password"`
}

func (r UserRequest) user(id int64) *domain.User {
	return &domain.User{
		ID:              id,
		Role:            domain.Role(r.Role),
		GivenNames:      r.GivenNames,
		PaternalSurname: r.PaternalSurname,
		MaternalSurname: r.MaternalSurname,
		Email:           r.Email,
		Phone:           r.Phone,
		Gender:          domain.Gender(r.Gender),
		Password:        r.Password,
	}
}

// UserHandler handles HTTP requests for staff account administration
type UserHandler struct {
	users  service.UserService
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Route("/api/users", func(r chi.Router) {
		r.Use(routes.Auth)
		r.Use(middleware.RequireCapability(session.ManageUsers, h.logger))

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List accepts optional role and q filters.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.UserFilter{
		Role:  domain.Role(r.URL.Query().Get("role")),
		Query: r.URL.Query().Get("q"),
	}
	users, err := h.users.ListUsers(r.Context(), filter)
	if err != nil {
		fail(w, h.logger, "Failed to list users", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "User validation failed", err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.user(0))
	if err != nil {
		fail(w, h.logger, "Failed to create user", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid user id", err)
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		fail(w, h.logger, "Failed to get user", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid user id", err)
		return
	}
	var req UserRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		fail(w, h.logger, "User validation failed", err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), req.user(id))
	if err != nil {
		fail(w, h.logger, "Failed to update user", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, h.logger, "Invalid user id", err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		fail(w, h.logger, "Failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
