package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/subject"
)

// Roles
const (
	RoleGuest   = "guest"
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var (
	AllRoles = []string{RoleGuest, RoleStudent, RoleTeacher, RoleAdmin}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
		RoleGuest:   1,
	}

	Roles = []Role{
		{Name: "Гость", Value: RoleGuest},
		{Name: "Ученик", Value: RoleStudent},
		{Name: "Преподаватель", Value: RoleTeacher},
		{Name: "Администратор", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func IsValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AccessGrant is a per-subject flag gating course visibility.
type AccessGrant struct {
	Enabled bool `json:"enabled"`
}

type User struct {
	Username     string                 `json:"username"` // normalized email; unique key
	Email        string                 `json:"email"`
	PasswordHash []byte                 `json:"password_hash,omitempty"`
	FirstName    string                 `json:"first_name"`
	LastName     string                 `json:"last_name"`
	Birthdate    string                 `json:"birthdate"`
	Phone        string                 `json:"phone"`
	Avatar       string                 `json:"avatar"` // data URL or empty
	Role         string                 `json:"role"`
	Access       map[string]AccessGrant `json:"access"`
	CreatedAt    time.Time              `json:"created_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

func (u *User) FullName() string {
	return core.CleanString(strings.TrimSpace(u.LastName + " " + u.FirstName))
}

// Session is the reduced projection of the logged-in user. It never carries
// the password hash and is refreshed by every mutation touching the account.
type Session struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

func (u *User) Session() Session {
	return Session{
		Username:  u.Username,
		Role:      u.Role,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Avatar:    u.Avatar,
	}
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Birthdate string `json:"birthdate" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Birthdate = core.CleanString(nu.Birthdate)
	nu.Phone = core.CleanString(nu.Phone)
	return validate.Struct(nu)
}

// Credentials defines what account credentials may be changed; empty fields
// are left untouched.
type Credentials struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	c.Phone = core.CleanString(c.Phone)
	return validate.Struct(c)
}

type Notification struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Emoji     string    `json:"emoji"`
	Link      string    `json:"link,omitempty"`
	Unread    bool      `json:"unread"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotification is the caller-provided part of a Notification.
type NewNotification struct {
	Text  string `json:"text" validate:"required"`
	Emoji string `json:"emoji"`
	Link  string `json:"link"`
}

type SubjectStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

type Stats struct {
	Total    int                     `json:"total"`
	Correct  int                     `json:"correct"`
	Subjects map[string]SubjectStats `json:"subjects"`
}

// normalizeUsername lowers and trims an identifier used as the account key.
func normalizeUsername(s string) string {
	return core.CleanString(s, true /* lower */)
}

// ensureEmail normalizes an email-ish identifier; bare local parts get the
// demo domain appended so legacy records always hold a well-formed address.
func ensureEmail(s string) string {
	normalized := normalizeUsername(s)
	if normalized == "" {
		return ""
	}
	if strings.Contains(normalized, "@") {
		return normalized
	}
	return normalized + "@example.com"
}

// ensureAccess guarantees the access invariant: every known subject code is
// present, missing entries default to disabled.
func ensureAccess(access map[string]AccessGrant) map[string]AccessGrant {
	result := make(map[string]AccessGrant, len(subject.Subjects))
	for _, code := range subject.Codes() {
		result[code] = AccessGrant{Enabled: access[code].Enabled}
	}
	return result
}

// ensureUser applies the normalization pass every read and write goes
// through: well-formed email, non-empty username and a complete access map.
func ensureUser(u User) User {
	rawEmail := core.CleanString(u.Email)
	if rawEmail == "" {
		rawEmail = core.CleanString(u.Username)
	}
	email := ensureEmail(rawEmail)

	if u.Username = core.CleanString(u.Username); u.Username == "" {
		u.Username = email
	}
	u.Email = email
	if u.Role == "" {
		u.Role = RoleGuest
	}
	u.Access = ensureAccess(u.Access)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return u
}
