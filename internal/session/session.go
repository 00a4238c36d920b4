// Package session tracks the one identity logged in to this back-office
// instance and answers every role-gating question.
package session

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/domain"
)

type Capability string

const (
	ManageUsers      Capability = "manage_users"
	ManageCategories Capability = "manage_categories"
	ManageProducts   Capability = "manage_products"
	ManageInventory  Capability = "manage_inventory"
	ViewReports      Capability = "view_reports"
	AccessPOS        Capability = "access_pos"
	ViewSales        Capability = "view_sales"
	ProcessSales     Capability = "process_sales"
	ViewProducts     Capability = "view_products"
)

var capabilityRoles = map[Capability][]domain.Role{
	ManageUsers:      {domain.RoleAdmin},
	ManageCategories: {domain.RoleAdmin},
	ManageProducts:   {domain.RoleAdmin},
	ManageInventory:  {domain.RoleAdmin},
	ViewReports:      {domain.RoleAdmin},
	AccessPOS:        {domain.RoleAdmin, domain.RoleCashier},
	ViewSales:        {domain.RoleAdmin, domain.RoleCashier},
	ProcessSales:     {domain.RoleAdmin, domain.RoleCashier},
	ViewProducts:     {domain.RoleAdmin, domain.RoleCashier},
}

// Session is an immutable snapshot of a login.
type Session struct {
	ID        uuid.UUID
	User      domain.User
	StartedAt time.Time
}

func (s *Session) Allows(c Capability) bool {
	for _, r := range capabilityRoles[c] {
		if s.User.Role == r {
			return true
		}
	}
	return false
}

// Context holds the current session. Login and Logout swap the whole
// snapshot atomically, so readers always see either a complete session or
// none.
type Context struct {
	current atomic.Pointer[Session]
	now     func() time.Time
}

func New() *Context {
	return &Context{now: time.Now}
}

// Login replaces any current session with one for user.
func (c *Context) Login(user *domain.User) *Session {
	u := *user
	u.Password = ""
	u.PasswordHash = ""

	s := &Session{ID: uuid.New(), User: u, StartedAt: c.now()}
	c.current.Store(s)
	return s
}

func (c *Context) Logout() {
	c.current.Store(nil)
}

// End clears the session only if it is still id, so a stale logout cannot
// end a newer login.
func (c *Context) End(id uuid.UUID) bool {
	s := c.current.Load()
	if s == nil || s.ID != id {
		return false
	}
	return c.current.CompareAndSwap(s, nil)
}

func (c *Context) Current() (*Session, bool) {
	s := c.current.Load()
	return s, s != nil
}

func (c *Context) CurrentUser() (*domain.User, bool) {
	s := c.current.Load()
	if s == nil {
		return nil, false
	}
	u := s.User
	return &u, true
}

func (c *Context) IsLoggedIn() bool { return c.current.Load() != nil }

func (c *Context) IsAdmin() bool {
	s := c.current.Load()
	return s != nil && s.User.Role == domain.RoleAdmin
}

func (c *Context) IsCashier() bool {
	s := c.current.Load()
	return s != nil && s.User.Role == domain.RoleCashier
}

func (c *Context) Can(capability Capability) bool {
	s := c.current.Load()
	return s != nil && s.Allows(capability)
}

// Require returns the current session if it may exercise capability.
func (c *Context) Require(capability Capability) (*Session, error) {
	s := c.current.Load()
	if s == nil {
		return nil, auth.ErrNotAuthenticated
	}
	if !s.Allows(capability) {
		return nil, auth.ErrForbidden
	}
	return s, nil
}

func (c *Context) CanManageUsers() bool      { return c.Can(ManageUsers) }
func (c *Context) CanManageCategories() bool { return c.Can(ManageCategories) }
func (c *Context) CanManageProducts() bool   { return c.Can(ManageProducts) }
func (c *Context) CanManageInventory() bool  { return c.Can(ManageInventory) }
func (c *Context) CanViewReports() bool      { return c.Can(ViewReports) }
func (c *Context) CanAccessPOS() bool        { return c.Can(AccessPOS) }
func (c *Context) CanViewSales() bool        { return c.Can(ViewSales) }
func (c *Context) CanProcessSales() bool     { return c.Can(ProcessSales) }
func (c *Context) CanViewProducts() bool     { return c.Can(ViewProducts) }

// AccessLevel describes the current session for display.
func (c *Context) AccessLevel() string {
	s := c.current.Load()
	if s == nil {
		return "No access"
	}
	return AccessLevelOf(s.User.Role)
}

// AccessLevelOf describes what a role may do, for display.
func AccessLevelOf(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "Administrator - full access"
	case domain.RoleCashier:
		return "Cashier - point of sale"
	default:
		return "Limited access"
	}
}
