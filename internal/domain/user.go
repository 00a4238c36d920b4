package domain

import "strings"

type Role string

const (
	RoleCashier Role = "cajero"
	RoleAdmin   Role = "administrador"
)

func (r Role) Valid() bool {
	return r == RoleCashier || r == RoleAdmin
}

type Gender string

const (
	GenderMale   Gender = "H"
	GenderFemale Gender = "M"
)

// User is a staff account. PasswordHash is what the store holds; Password is
// a plaintext replacement that repositories hash on insert or update and then
// clear. An empty Password on update keeps the stored hash.
type User struct {
	ID              int64  `json:"id"`
	Role            Role   `json:"role" validate:"required,oneof=cajero administrador"`
	PasswordHash    string `json:"-"`
	Password        string `json:"-"`
	GivenNames      string `json:"given_names" validate:"required,max=100"`
	PaternalSurname string `json:"paternal_surname" validate:"required,max=100"`
	MaternalSurname string `json:"maternal_surname" validate:"max=100"`
	Email           string `json:"email" validate:"required,max=100,mailbox"`
	Phone           string `json:"phone" validate:"required,len=10,digits"`
	Gender          Gender `json:"gender,omitempty" validate:"omitempty,oneof=H M"`
}

func (u *User) Validate() error {
	return ValidateStruct("user", u)
}

func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.GivenNames, u.PaternalSurname, u.MaternalSurname} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsCashier() bool { return u.Role == RoleCashier }
