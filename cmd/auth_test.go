// ABOUTME: Tests for the account commands
// ABOUTME: Runs login, register, whoami, logout and verification against the fake API

package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/hiu1412/carshop/internal/client"
)

func TestLoginCommand(t *testing.T) {
	newTestAPI(t)

	var buf bytes.Buffer
	if code := runLogin(context.Background(), &buf, "customer@example.com", "secret"); code != exitOK {
		t.Fatalf("expected exit code 0, got %d\n%s", code, buf.String())
	}
	mustContain(t, buf.String(), "Signed in as customer@example.com", "Nguyen Van A", "customer")

	// The session survives into the next invocation.
	buf.Reset()
	if code := runWhoami(context.Background(), &buf); code != exitOK {
		t.Fatalf("whoami: exit code %d\n%s", code, buf.String())
	}
	mustContain(t, buf.String(), "customer@example.com")
}

func TestLoginCommand_WrongPassword(t *testing.T) {
	newTestAPI(t)

	var buf bytes.Buffer
	if code := runLogin(context.Background(), &buf, "customer@example.com", "nope"); code != exitError {
		t.Errorf("expected exit code 2, got %d", code)
	}
	mustContain(t, buf.String(), "Error:")
}

func TestLoginCommand_MissingFlags(t *testing.T) {
	var buf bytes.Buffer
	if code := runLogin(context.Background(), &buf, "", ""); code != exitError {
		t.Errorf("expected exit code 2, got %d", code)
	}
	mustContain(t, buf.String(), "--email and --password are required")
}

func TestWhoamiCommand_NotSignedIn(t *testing.T) {
	newTestAPI(t)

	var buf bytes.Buffer
	if code := runWhoami(context.Background(), &buf); code != exitError {
		t.Errorf("expected exit code 2, got %d", code)
	}
	mustContain(t, buf.String(), "carshop login")
}

func TestLogoutCommand(t *testing.T) {
	newTestAPI(t)
	signIn(t, "customer@example.com")

	var buf bytes.Buffer
	if code := runLogout(context.Background(), &buf); code != exitOK {
		t.Fatalf("expected exit code 0, got %d\n%s", code, buf.String())
	}
	mustContain(t, buf.String(), "Signed out.")

	buf.Reset()
	runLogout(context.Background(), &buf)
	mustContain(t, buf.String(), "Not signed in.")
}

func TestRegisterCommand(t *testing.T) {
	newTestAPI(t)

	var buf bytes.Buffer
	code := runRegister(context.Background(), &buf, client.RegisterInput{
		FullName:             "Tran Thi B",
		Email:                "b@example.com",
		Password:             "secret1",
		PasswordConfirmation: "secret1",
	})
	if code != exitOK {
		t.Fatalf("expected exit code 0, got %d\n%s", code, buf.String())
	}
	mustContain(t, buf.String(), "Registered b@example.com", "Verified:  no", "verify-email")

	buf.Reset()
	if code := runVerifyEmail(context.Background(), &buf, "b@example.com", "tok-123", false); code != exitOK {
		t.Fatalf("verify: exit code %d\n%s", code, buf.String())
	}
	mustContain(t, buf.String(), "Email b@example.com verified.")
}

func TestRegisterCommand_ValidationErrors(t *testing.T) {
	newTestAPI(t)

	var buf bytes.Buffer
	code := runRegister(context.Background(), &buf, client.RegisterInput{
		FullName:             "Someone",
		Email:                "customer@example.com",
		Password:             "123",
		PasswordConfirmation: "123",
	})
	if code != exitError {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	mustContain(t, buf.String(), "email: The email has already been taken.", "password: The password must be at least 6 characters.")
}

func TestVerifyEmailCommand(t *testing.T) {
	newTestAPI(t)

	tests := []struct {
		name   string
		token  string
		resend bool
		code   int
		want   string
	}{
		{"missing token", "", false, exitError, "token is required"},
		{"bad token", "invalid", false, exitError, "Error:"},
		{"resend", "", true, exitOK, "Verification mail sent to customer@example.com."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if code := runVerifyEmail(context.Background(), &buf, "customer@example.com", tt.token, tt.resend); code != tt.code {
				t.Errorf("expected exit code %d, got %d\n%s", tt.code, code, buf.String())
			}
			mustContain(t, buf.String(), tt.want)
		})
	}
}

func TestGoogleURLCommand(t *testing.T) {
	newTestAPI(t)

	var buf bytes.Buffer
	if code := runGoogleURL(context.Background(), &buf); code != exitOK {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	mustContain(t, buf.String(), "https://accounts.google.com/")
}
