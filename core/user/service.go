package user

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/storage/kvstore"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateAccount   = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Service owns the account collection, the current-session projection, the
// per-user notification feeds and the trainer stats. Every operation is a
// whole-collection read-modify-write against the underlying store; the mutex
// serializes those cycles within this process, racing processes stay
// last-writer-wins.
type Service struct {
	store    kvstore.Store
	mailSvc  core.EmailService
	logger   core.Logger
	validate *validator.Validate

	mu sync.Mutex
}

func NewService(store kvstore.Store, mailSvc core.EmailService, logger core.Logger, validate *validator.Validate) *Service {
	return &Service{
		store:    store,
		mailSvc:  mailSvc,
		logger:   logger,
		validate: validate,
	}
}

// Init seeds the default admin account on first run and re-runs the
// normalization pass over whatever is already stored.
func (svc *Service) Init() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var existing []User
	err := svc.store.Load(kvstore.KeyUsers, &existing)
	if err == kvstore.ErrKeyNotFound {
		admin := User{
			Username:  "admin@example.com",
			Email:     "admin@example.com",
			FirstName: "Системный",
			LastName:  "Администратор",
			Role:      RoleAdmin,
			Access:    allAccess(),
			CreatedAt: time.Now().UTC(),
		}
		if err = admin.SetPassword("admin"); err != nil {
			return errors.Wrap(err, "hashing admin password")
		}
		return svc.saveUsers([]User{admin})
	}
	if err != nil {
		return errors.Wrap(err, "loading users")
	}
	return svc.saveUsers(existing)
}

func allAccess() map[string]AccessGrant {
	access := ensureAccess(nil)
	for code := range access {
		access[code] = AccessGrant{Enabled: true}
	}
	return access
}

// users loads the full account list; a missing or corrupted document
// degrades to an empty list.
func (svc *Service) users() []User {
	var users []User
	if err := svc.store.Load(kvstore.KeyUsers, &users); err != nil {
		if err != kvstore.ErrKeyNotFound {
			svc.logger.Warn(fmt.Sprintf("loading users, falling back to empty: %v", err))
		}
		return nil
	}
	for i := range users {
		users[i] = ensureUser(users[i])
	}
	return users
}

func (svc *Service) saveUsers(users []User) error {
	for i := range users {
		users[i] = ensureUser(users[i])
	}
	return errors.Wrap(svc.store.Save(kvstore.KeyUsers, users), "saving users")
}

// Register creates an account with role guest and no access grants, then
// logs it in. The email must not collide with any existing account's email
// or username, compared case-insensitively.
func (svc *Service) Register(nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	users := svc.users()
	for _, u := range users {
		if normalizeUsername(u.Email) == nu.Email || normalizeUsername(u.Username) == nu.Email {
			return User{}, core.NewValidationError(ErrDuplicateAccount,
				core.FieldError{Field: "email", Error: ErrDuplicateAccount.Error()})
		}
	}

	usr := User{
		Username:  nu.Email,
		Email:     nu.Email,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Birthdate: nu.Birthdate,
		Phone:     nu.Phone,
		Role:      RoleGuest,
		CreatedAt: time.Now().UTC(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr = ensureUser(usr)

	if err := svc.saveUsers(append(users, usr)); err != nil {
		return User{}, err
	}
	if err := svc.setSession(usr); err != nil {
		return User{}, err
	}
	svc.sendWelcomeEmail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeEmail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Добро пожаловать",
		TemplateName: "welcome",
		TemplateData: struct{ FirstName string }{usr.FirstName},
	})
}

// Login matches by normalized email, username or the email's local part and
// verifies the password. A bare local part resolves against the demo domain
// first, then against stored usernames. It refreshes the session projection
// on success.
func (svc *Service) Login(email, password string) (User, error) {
	normalized := ensureEmail(email)
	fallback := normalized
	if i := strings.Index(normalized, "@"); i >= 0 {
		fallback = normalized[:i]
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, u := range svc.users() {
		uname := normalizeUsername(u.Username)
		if normalizeUsername(u.Email) != normalized && uname != normalized && uname != fallback {
			continue
		}
		if err := u.CheckPassword(password); err != nil {
			continue
		}
		if err := svc.setSession(u); err != nil {
			return User{}, err
		}
		return u, nil
	}
	return User{}, ErrInvalidCredentials
}

// Users returns all accounts, normalized.
func (svc *Service) Users() []User {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.users()
}

// GetUser finds an account by normalized username.
func (svc *Service) GetUser(username string) (User, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.getUser(username)
}

func (svc *Service) getUser(username string) (User, error) {
	normalized := normalizeUsername(username)
	for _, u := range svc.users() {
		if normalizeUsername(u.Username) == normalized {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// Upsert merges the non-zero fields of usr into the account matched by
// normalized email, or inserts a new account when none matches.
func (svc *Service) Upsert(usr User) (User, error) {
	key := normalizeUsername(usr.Email)
	if key == "" {
		key = normalizeUsername(usr.Username)
	}
	if key == "" {
		return User{}, core.NewValidationError(nil,
			core.FieldError{Field: "email", Error: "this field is required"})
	}
	key = ensureEmail(key)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	users := svc.users()
	idx := -1
	for i, u := range users {
		if normalizeUsername(u.Username) == key {
			idx = i
			break
		}
	}

	var merged User
	if idx >= 0 {
		merged = mergeUser(users[idx], usr)
		users[idx] = merged
	} else {
		usr.Username = key
		usr.Email = key
		merged = ensureUser(usr)
		users = append(users, merged)
	}

	if err := svc.saveUsers(users); err != nil {
		return User{}, err
	}
	svc.refreshSession(merged)
	return merged, nil
}

// mergeUser overlays the non-zero fields of patch onto base.
func mergeUser(base, patch User) User {
	if patch.FirstName != "" {
		base.FirstName = patch.FirstName
	}
	if patch.LastName != "" {
		base.LastName = patch.LastName
	}
	if patch.Birthdate != "" {
		base.Birthdate = patch.Birthdate
	}
	if patch.Phone != "" {
		base.Phone = patch.Phone
	}
	if patch.Avatar != "" {
		base.Avatar = patch.Avatar
	}
	if patch.Role != "" {
		base.Role = patch.Role
	}
	if patch.PasswordHash != nil {
		base.PasswordHash = patch.PasswordHash
	}
	if patch.Access != nil {
		base.Access = ensureAccess(patch.Access)
	}
	return ensureUser(base)
}

// UpdateCredentials changes an account's email, password and/or phone.
// A new email colliding with a different account fails with DuplicateAccount.
func (svc *Service) UpdateCredentials(username string, creds Credentials) (User, error) {
	if err := creds.Validate(svc.validate); err != nil {
		return User{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	normalized := normalizeUsername(username)
	users := svc.users()
	idx := -1
	for i, u := range users {
		if normalizeUsername(u.Username) == normalized {
			idx = i
			break
		}
	}
	if idx < 0 {
		return User{}, ErrNotFound
	}

	if creds.Email != "" {
		for i, u := range users {
			if i == idx {
				continue
			}
			if normalizeUsername(u.Email) == creds.Email || normalizeUsername(u.Username) == creds.Email {
				return User{}, core.NewValidationError(ErrDuplicateAccount,
					core.FieldError{Field: "email", Error: ErrDuplicateAccount.Error()})
			}
		}
		users[idx].Email = creds.Email
	}
	if creds.Password != "" {
		if err := users[idx].SetPassword(creds.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	if creds.Phone != "" {
		users[idx].Phone = creds.Phone
	}

	if err := svc.saveUsers(users); err != nil {
		return User{}, err
	}
	svc.refreshSession(users[idx])
	return users[idx], nil
}

// ResetPassword replaces an account's password.
func (svc *Service) ResetPassword(username, pwd string) (User, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	normalized := normalizeUsername(username)
	users := svc.users()
	for i := range users {
		if normalizeUsername(users[i].Username) != normalized {
			continue
		}
		if err := users[i].SetPassword(pwd); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		if err := svc.saveUsers(users); err != nil {
			return User{}, err
		}
		return users[i], nil
	}
	return User{}, ErrNotFound
}

// Delete removes an account; deleting the logged-in account also logs out.
func (svc *Service) Delete(username string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	normalized := normalizeUsername(username)
	users := svc.users()
	kept := users[:0]
	for _, u := range users {
		if normalizeUsername(u.Username) != normalized {
			kept = append(kept, u)
		}
	}
	if err := svc.saveUsers(kept); err != nil {
		return err
	}

	if sess, ok := svc.session(); ok && normalizeUsername(sess.Username) == normalized {
		return svc.logout()
	}
	return nil
}

func (svc *Service) UpdateRole(username, role string) (User, error) {
	if !IsValidRole(role) {
		return User{}, core.NewValidationError(nil,
			core.FieldError{Field: "role", Error: "invalid role"})
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.updateField(username, func(u *User) { u.Role = role })
}

func (svc *Service) SetAccess(username string, access map[string]AccessGrant) (User, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.updateField(username, func(u *User) { u.Access = ensureAccess(access) })
}

func (svc *Service) updateField(username string, apply func(*User)) (User, error) {
	normalized := normalizeUsername(username)
	users := svc.users()
	for i := range users {
		if normalizeUsername(users[i].Username) != normalized {
			continue
		}
		apply(&users[i])
		users[i] = ensureUser(users[i])
		if err := svc.saveUsers(users); err != nil {
			return User{}, err
		}
		svc.refreshSession(users[i])
		return users[i], nil
	}
	return User{}, ErrNotFound
}

// Session management

// CurrentUser returns the reduced session projection, if logged in.
func (svc *Service) CurrentUser() (Session, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.session()
}

func (svc *Service) session() (Session, bool) {
	var sess Session
	if err := svc.store.Load(kvstore.KeyCurrentUser, &sess); err != nil {
		return Session{}, false
	}
	return sess, sess.Username != ""
}

func (svc *Service) setSession(usr User) error {
	return errors.Wrap(svc.store.Save(kvstore.KeyCurrentUser, usr.Session()), "saving session")
}

// refreshSession re-projects the session when the mutated account is the
// logged-in one, so already-rendered consumers see fresh role/access.
func (svc *Service) refreshSession(usr User) {
	if sess, ok := svc.session(); ok && normalizeUsername(sess.Username) == normalizeUsername(usr.Username) {
		if err := svc.setSession(usr); err != nil {
			svc.logger.Warn(fmt.Sprintf("refreshing session: %v", err))
		}
	}
}

func (svc *Service) Logout() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.logout()
}

func (svc *Service) logout() error {
	return errors.Wrap(svc.store.Delete(kvstore.KeyCurrentUser), "clearing session")
}
