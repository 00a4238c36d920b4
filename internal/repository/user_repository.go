package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/database"
	"pos-backoffice/internal/domain"
)

var (
	ErrUserNotFound      = &apperr.Error{Kind: apperr.KindNotFound, Message: "user not found"}
	ErrUserAlreadyExists = &apperr.Error{Kind: apperr.KindQuery, Message: "user with this email already exists", Err: apperr.ErrDuplicate}
	ErrUserHasSales      = &apperr.Error{Kind: apperr.KindQuery, Message: "user has recorded sales", Err: apperr.ErrForeignKey}
	ErrPasswordRequired  = &apperr.Error{Kind: apperr.KindValidation, Message: "invalid user", Fields: []apperr.FieldError{{Field: "password", Message: "This field is required"}}}
)

// PasswordHasher hashes new passwords and verifies candidates against
// stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, stored string) bool
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Repository[domain.User, int64]
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) (bool, error)
	WithTx(tx *sql.Tx) UserRepository
}

type userRepository struct {
	src    database.Source
	hasher PasswordHasher
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(src database.Source, hasher PasswordHasher) UserRepository {
	return &userRepository{src: src, hasher: hasher}
}

func (r *userRepository) WithTx(tx *sql.Tx) UserRepository {
	return &userRepository{src: database.TxSource(tx), hasher: r.hasher}
}

const userColumns = `id_usuario, rol, contrasena, nombres, apellido_paterno, apellido_materno, correo, telefono, COALESCE(sexo, '')`

// Insert stores user. A non-empty user.Password is hashed into
// user.PasswordHash and cleared; otherwise PasswordHash must already be set.
func (r *userRepository) Insert(ctx context.Context, user *domain.User) (int64, error) {
	user.Email = normalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return 0, err
	}
	if err := r.applyPassword(user); err != nil {
		return 0, err
	}
	if user.PasswordHash == "" {
		return 0, ErrPasswordRequired
	}

	q, err := r.src.Querier(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO usuario (rol, contrasena, nombres, apellido_paterno, apellido_materno, correo, telefono, sexo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id_usuario
	`

	err = q.QueryRowContext(ctx, query,
		string(user.Role),
		user.PasswordHash,
		user.GivenNames,
		user.PaternalSurname,
		user.MaternalSurname,
		user.Email,
		user.Phone,
		nullable(string(user.Gender)),
	).Scan(&user.ID)
	if err != nil {
		err = apperr.FromSQL("failed to insert user", err)
		if errors.Is(err, apperr.ErrDuplicate) {
			return 0, ErrUserAlreadyExists
		}
		return 0, err
	}
	return user.ID, nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, "failed to find user by id", `SELECT `+userColumns+` FROM usuario WHERE id_usuario = $1`, id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "failed to find user by email", `SELECT `+userColumns+` FROM usuario WHERE correo = $1`, normalizeEmail(email))
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM usuario WHERE correo = $1)`, normalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, apperr.FromSQL("failed to check user email", err)
	}
	return exists, nil
}

func (r *userRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	return r.list(ctx, "failed to list users", `
		SELECT `+userColumns+`
		FROM usuario
		ORDER BY apellido_paterno, apellido_materno, nombres, id_usuario
	`)
}

func (r *userRepository) FindByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return r.list(ctx, "failed to find users by role", `
		SELECT `+userColumns+`
		FROM usuario
		WHERE rol = $1
		ORDER BY apellido_paterno, apellido_materno, nombres, id_usuario
	`, string(role))
}

// Update replaces the user row. The stored hash is only replaced when
// user.Password carries a new plaintext password.
func (r *userRepository) Update(ctx context.Context, user *domain.User) (bool, error) {
	user.Email = normalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return false, err
	}
	newPassword := user.Password != ""
	if err := r.applyPassword(user); err != nil {
		return false, err
	}

	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	args := []any{
		user.ID,
		string(user.Role),
		user.GivenNames,
		user.PaternalSurname,
		user.MaternalSurname,
		user.Email,
		user.Phone,
		nullable(string(user.Gender)),
	}
	query := `
		UPDATE usuario
		SET rol = $2, nombres = $3, apellido_paterno = $4, apellido_materno = $5,
		    correo = $6, telefono = $7, sexo = $8
		WHERE id_usuario = $1
	`
	if newPassword {
		args = append(args, user.PasswordHash)
		query = `
		UPDATE usuario
		SET rol = $2, nombres = $3, apellido_paterno = $4, apellido_materno = $5,
		    correo = $6, telefono = $7, sexo = $8, contrasena = $9
		WHERE id_usuario = $1
	`
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		err = apperr.FromSQL("failed to update user", err)
		if errors.Is(err, apperr.ErrDuplicate) {
			return false, ErrUserAlreadyExists
		}
		return false, err
	}
	return changed(res, "user update")
}

// UpdatePasswordHash stores an already computed hash.
func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `UPDATE usuario SET contrasena = $2 WHERE id_usuario = $1`, id, hash)
	if err != nil {
		return false, apperr.FromSQL("failed to update password", err)
	}
	return changed(res, "password update")
}

// Delete removes the user. Users that recorded sales cannot be deleted.
func (r *userRepository) Delete(ctx context.Context, id int64) (bool, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `DELETE FROM usuario WHERE id_usuario = $1`, id)
	if err != nil {
		err = apperr.FromSQL("failed to delete user", err)
		if errors.Is(err, apperr.ErrForeignKey) {
			return false, ErrUserHasSales
		}
		return false, err
	}
	return changed(res, "user delete")
}

// Authenticate loads the account for email and checks password against the
// stored hash. Unknown email and wrong password fail the same way.
func (r *userRepository) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := r.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !r.hasher.Verify(password, user.PasswordHash) {
		return nil, auth.ErrInvalidCredentials
	}
	return user, nil
}

func (r *userRepository) applyPassword(user *domain.User) error {
	if user.Password == "" {
		return nil
	}
	hash, err := r.hasher.Hash(user.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.Password = ""
	return nil
}

func (r *userRepository) findOne(ctx context.Context, op, query string, args ...any) (*domain.User, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	return user, nil
}

func (r *userRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.User, error) {
	q, err := r.src.Querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperr.FromSQL("failed to scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromSQL(op, err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var gender string
	err := row.Scan(
		&u.ID,
		&u.Role,
		&u.PasswordHash,
		&u.GivenNames,
		&u.PaternalSurname,
		&u.MaternalSurname,
		&u.Email,
		&u.Phone,
		&gender,
	)
	if err != nil {
		return nil, err
	}
	u.Gender = domain.Gender(gender)
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
