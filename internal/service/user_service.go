package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/metrics"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/session"
)

var ErrCannotDeleteSelf = &apperr.Error{Kind: apperr.KindValidation, Message: "the logged in user cannot delete their own account"}

// PasswordHasher is the part of auth.PasswordHasher the login flow needs.
type PasswordHasher interface {
	Hash(password string) (string, error)
	NeedsRehash(stored string) bool
}

// LoginResult is delivered once by LoginAsync.
type LoginResult struct {
	Session *session.Session
	Token   string
	Err     error
}

// UserFilter narrows ListUsers. Query matches names and email,
// case-insensitively.
type UserFilter struct {
	Role  domain.Role
	Query string
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, user *domain.User) (*domain.User, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
	Login(ctx context.Context, email, password string) (*session.Session, string, error)
	LoginAsync(ctx context.Context, email, password string) <-chan LoginResult
	Logout(ctx context.Context, sessionID uuid.UUID) bool
	CurrentUser() (*domain.User, error)

	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type userService struct {
	users    repository.UserRepository
	hasher   PasswordHasher
	sessions *session.Context
	tokens   *session.TokenIssuer
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewUserService creates a new instance of UserService
func NewUserService(
	users repository.UserRepository,
	hasher PasswordHasher,
	sessions *session.Context,
	tokens *session.TokenIssuer,
	m *metrics.Metrics,
	logger *zap.Logger,
) UserService {
	return &userService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		tokens:   tokens,
		metrics:  m,
		logger:   logger,
	}
}

// Register creates a cashier account. The role in user is ignored.
func (s *userService) Register(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := auth.CheckStrength(user.Password); err != nil {
		return nil, err
	}
	user.Role = domain.RoleCashier

	return s.insert(ctx, user)
}

// EmailAvailable reports whether no account uses email yet.
func (s *userService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	if !domain.IsValidEmail(email) {
		return false, apperr.Validation("invalid email", apperr.FieldError{Field: "email", Message: "Invalid email format"})
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Login authenticates the credentials, replaces the current session and
// returns it with a token bound to it. Accounts still stored with a legacy
// digest are rehashed on the way in.
func (s *userService) Login(ctx context.Context, email, password string) (*session.Session, string, error) {
	var fields []apperr.FieldError
	if strings.TrimSpace(email) == "" {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "This field is required"})
	}
	if password == "" {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "This field is required"})
	}
	if len(fields) > 0 {
		s.metrics.ObserveLogin(metrics.OutcomeRejected)
		return nil, "", apperr.Validation("invalid credentials", fields...)
	}

	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		s.metrics.ObserveLogin(metrics.OutcomeFailed)
		s.logger.Info("Login failed", zap.String("email", email), zap.Error(err))
		return nil, "", err
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	sess := s.sessions.Login(user)
	token, err := s.tokens.Issue(sess)
	if err != nil {
		s.sessions.End(sess.ID)
		return nil, "", err
	}

	s.metrics.ObserveLogin(metrics.OutcomeSuccess)
	s.logger.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("session_id", sess.ID.String()),
	)
	return sess, token, nil
}

// LoginAsync runs Login on its own goroutine. The channel yields exactly
// one result, after the session is in place, and is then closed.
func (s *userService) LoginAsync(ctx context.Context, email, password string) <-chan LoginResult {
	results := make(chan LoginResult, 1)
	go func() {
		defer close(results)
		sess, token, err := s.Login(ctx, email, password)
		results <- LoginResult{Session: sess, Token: token, Err: err}
	}()
	return results
}

// Logout ends the session with sessionID if it is still the current one.
func (s *userService) Logout(_ context.Context, sessionID uuid.UUID) bool {
	ended := s.sessions.End(sessionID)
	if ended {
		s.logger.Info("User logged out", zap.String("session_id", sessionID.String()))
	}
	return ended
}

func (s *userService) CurrentUser() (*domain.User, error) {
	user, ok := s.sessions.CurrentUser()
	if !ok {
		return nil, auth.ErrNotAuthenticated
	}
	return user, nil
}

// CreateUser lets an administrator add an account with any role.
func (s *userService) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if _, err := s.sessions.Require(session.ManageUsers); err != nil {
		return nil, err
	}
	if err := auth.CheckStrength(user.Password); err != nil {
		return nil, err
	}
	return s.insert(ctx, user)
}

func (s *userService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	if _, err := s.sessions.Require(session.ManageUsers); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, id)
}

func (s *userService) ListUsers(ctx context.Context, filter UserFilter) ([]*domain.User, error) {
	if _, err := s.sessions.Require(session.ManageUsers); err != nil {
		return nil, err
	}

	var users []*domain.User
	var err error
	if filter.Role != "" {
		if !filter.Role.Valid() {
			return nil, apperr.Validation("invalid filter", apperr.FieldError{Field: "role", Message: "Unknown role"})
		}
		users, err = s.users.FindByRole(ctx, filter.Role)
	} else {
		users, err = s.users.FindAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	if query == "" {
		return users, nil
	}
	matched := users[:0]
	for _, u := range users {
		if matchesUser(u, query) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

// UpdateUser saves user. The stored password is kept unless user.Password
// is set.
func (s *userService) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if _, err := s.sessions.Require(session.ManageUsers); err != nil {
		return nil, err
	}
	if user.Password != "" {
		if err := auth.CheckStrength(user.Password); err != nil {
			return nil, err
		}
	}

	ok, err := s.users.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	user.PasswordHash = ""
	return user, nil
}

// DeleteUser removes an account. The logged in administrator cannot remove
// themself, and accounts with recorded sales cannot be removed.
func (s *userService) DeleteUser(ctx context.Context, id int64) error {
	sess, err := s.sessions.Require(session.ManageUsers)
	if err != nil {
		return err
	}
	if sess.User.ID == id {
		return ErrCannotDeleteSelf
	}

	ok, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrUserNotFound
	}
	s.logger.Info("User deleted", zap.Int64("user_id", id), zap.Int64("by", sess.User.ID))
	return nil
}

func (s *userService) insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repository.ErrUserAlreadyExists
	}

	if _, err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	s.logger.Info("User created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// upgradeHash replaces a legacy digest. Failure is logged, not returned:
// the credentials were already verified.
func (s *userService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		_, err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.Warn("Failed to upgrade legacy password hash", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
	s.logger.Info("Upgraded legacy password hash", zap.Int64("user_id", user.ID))
}

func matchesUser(u *domain.User, query string) bool {
	for _, field := range []string{u.GivenNames, u.PaternalSurname, u.MaternalSurname, u.Email} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
