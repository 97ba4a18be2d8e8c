package testutil

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/user"
	"github.com/edumvp/backend/storage/kvstore"
)

// NewLogger returns a plain stdout logger for tests.
func NewLogger() core.Logger {
	return core.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
}

// NewTranslator returns the default english translator.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidate returns a validator wired with the app's custom validators.
func NewValidate() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, NewTranslator())
	return validate
}

// NewUserService builds a user service over the given store; emails are
// disabled.
func NewUserService(t *testing.T, store kvstore.Store) *user.Service {
	t.Helper()
	svc := user.NewService(store, nil, NewLogger(), NewValidate())
	if err := svc.Init(); err != nil {
		t.Fatalf("NewUserService() failed: %v", err)
	}
	return svc
}

// CreateUser registers an account with the given role and returns it.
func CreateUser(t *testing.T, svc *user.Service, email, pwd, firstName, lastName, role string) user.User {
	t.Helper()
	usr, err := svc.Register(user.NewUser{
		Email:     email,
		Password:  pwd,
		FirstName: firstName,
		LastName:  lastName,
		Birthdate: "2000-01-01",
		Phone:     "+70000000000",
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if role != "" && role != usr.Role {
		if usr, err = svc.UpdateRole(usr.Username, role); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	return usr
}
