package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/session"
)

var testHasher = auth.NewPasswordHasher(bcrypt.MinCost)

// stubTx runs fn without a real transaction; repositories ignore the nil
// *sql.Tx they are bound to.
type stubTx struct {
	calls      int
	rolledBack int
}

func (s *stubTx) WithTransaction(_ context.Context, fn func(tx *sql.Tx) error) error {
	s.calls++
	if err := fn(nil); err != nil {
		s.rolledBack++
		return err
	}
	return nil
}

// Mock repositories for testing
type mockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[int64]*domain.User)}
}

func (m *mockUserRepository) WithTx(*sql.Tx) repository.UserRepository { return m }

func (m *mockUserRepository) Insert(_ context.Context, user *domain.User) (int64, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := user.Validate(); err != nil {
		return 0, err
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return 0, repository.ErrUserAlreadyExists
		}
	}
	if user.Password != "" {
		hash, err := testHasher.Hash(user.Password)
		if err != nil {
			return 0, err
		}
		user.PasswordHash = hash
		user.Password = ""
	}
	m.nextID++
	user.ID = m.nextID
	stored := *user
	m.users[user.ID] = &stored
	return user.ID, nil
}

func (m *mockUserRepository) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepository) FindAll(context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserRepository) Update(_ context.Context, user *domain.User) (bool, error) {
	existing, ok := m.users[user.ID]
	if !ok {
		return false, nil
	}
	hash := existing.PasswordHash
	if user.Password != "" {
		h, err := testHasher.Hash(user.Password)
		if err != nil {
			return false, err
		}
		hash = h
		user.Password = ""
	}
	user.PasswordHash = hash
	stored := *user
	m.users[user.ID] = &stored
	return true, nil
}

func (m *mockUserRepository) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockUserRepository) FindByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	all, _ := m.FindAll(ctx)
	out := []*domain.User{}
	for _, u := range all {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepository) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := m.FindByEmail(ctx, email)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	if !testHasher.Verify(password, u.PasswordHash) {
		return nil, auth.ErrInvalidCredentials
	}
	return u, nil
}

func (m *mockUserRepository) UpdatePasswordHash(_ context.Context, id int64, hash string) (bool, error) {
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	return true, nil
}

// The sale-side mocks embed their interface; calling a method the mock does
// not override panics, which flags an unexpected repository call.
type mockProductRepository struct {
	repository.ProductRepository
	prices map[int64]decimal.Decimal
}

func (m *mockProductRepository) WithTx(*sql.Tx) repository.ProductRepository { return m }

func (m *mockProductRepository) PricesByID(_ context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	for _, id := range ids {
		if p, ok := m.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type mockSaleRepository struct {
	repository.SaleRepository
	sales     map[int64]*domain.Sale
	nextID    int64
	insertErr error
}

func newMockSaleRepository() *mockSaleRepository {
	return &mockSaleRepository{sales: make(map[int64]*domain.Sale)}
}

func (m *mockSaleRepository) WithTx(*sql.Tx) repository.SaleRepository { return m }

func (m *mockSaleRepository) Insert(_ context.Context, sale *domain.Sale) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.nextID++
	sale.ID = m.nextID
	stored := *sale
	m.sales[sale.ID] = &stored
	return sale.ID, nil
}

func (m *mockSaleRepository) FindByID(_ context.Context, id int64) (*domain.Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	out := *s
	return &out, nil
}

func (m *mockSaleRepository) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := m.sales[id]; !ok {
		return false, nil
	}
	delete(m.sales, id)
	return true, nil
}

func (m *mockSaleRepository) FindToday(context.Context) ([]*domain.Sale, error) {
	out := []*domain.Sale{}
	for _, s := range m.sales {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSaleRepository) FindByUser(_ context.Context, userID int64) ([]*domain.Sale, error) {
	out := []*domain.Sale{}
	for _, s := range m.sales {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockSaleLineRepository struct {
	repository.SaleLineRepository
	lines    []*domain.SaleLine
	products map[int64]*domain.Product
	failOn   int64
}

func (m *mockSaleLineRepository) WithTx(*sql.Tx) repository.SaleLineRepository { return m }

func (m *mockSaleLineRepository) Insert(_ context.Context, line *domain.SaleLine) (domain.SaleLineKey, error) {
	if line.ProductID == m.failOn {
		return domain.SaleLineKey{}, apperr.Query("failed to insert sale line", sql.ErrConnDone)
	}
	for _, l := range m.lines {
		if l.Key() == line.Key() {
			l.Quantity += line.Quantity
			line.Quantity = l.Quantity
			return line.Key(), nil
		}
	}
	stored := *line
	m.lines = append(m.lines, &stored)
	return line.Key(), nil
}

func (m *mockSaleLineRepository) FindBySale(_ context.Context, saleID int64) ([]*domain.SaleLine, error) {
	out := []*domain.SaleLine{}
	for _, l := range m.lines {
		if l.SaleID == saleID {
			c := *l
			c.Product = m.products[l.ProductID]
			out = append(out, &c)
		}
	}
	return out, nil
}

func loggedIn(role domain.Role, id int64) *session.Context {
	sessions := session.New()
	sessions.Login(&domain.User{ID: id, Role: role, GivenNames: "Prueba", PaternalSurname: "Usuario"})
	return sessions
}

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
