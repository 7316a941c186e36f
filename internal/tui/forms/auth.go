// ABOUTME: Sign-in and sign-up forms
// ABOUTME: Prompt only for the fields the command line left empty

package forms

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// Login holds the sign-in form values
type Login struct {
	Email    string
	Password string
}

// Form builds the sign-in form. Fields already filled are skipped.
func (l *Login) Form() *huh.Form {
	var fields []huh.Field
	if l.Email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&l.Email).
			Validate(validateEmail))
	}
	if l.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&l.Password).
			Validate(required("password")))
	}
	return huh.NewForm(huh.NewGroup(fields...).Title("Sign in")).WithTheme(Theme())
}

// Run shows the form when anything is missing
func (l *Login) Run() error {
	if l.Email != "" && l.Password != "" {
		return nil
	}
	return l.Form().Run()
}

// Register holds the sign-up form values
type Register struct {
	FullName             string
	Email                string
	Password             string
	PasswordConfirmation string
}

// Form builds the sign-up form
func (r *Register) Form() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Full name").
				Value(&r.FullName).
				Validate(required("full name")),
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&r.Email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				Description("At least 6 characters").
				EchoMode(huh.EchoModePassword).
				Value(&r.Password).
				Validate(validatePassword),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&r.PasswordConfirmation).
				Validate(func(s string) error {
					if s != r.Password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		).Title("Create an account"),
	).WithTheme(Theme())
}

// Run shows the form when anything is missing
func (r *Register) Run() error {
	if r.FullName != "" && r.Email != "" && r.Password != "" {
		if r.PasswordConfirmation == "" {
			r.PasswordConfirmation = r.Password
		}
		return nil
	}
	return r.Form().Run()
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(name + " is required")
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	at := strings.Index(s, "@")
	if at < 1 || at == len(s)-1 {
		return errors.New("enter a valid email address")
	}
	return nil
}

func validatePassword(s string) error {
	if len(s) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}
