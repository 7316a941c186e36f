// ABOUTME: Authentication routes of the fake API
// ABOUTME: Issues access tokens in the body and the refresh token as an HttpOnly cookie

package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registration struct {
	FullName             string `json:"full_name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	s.mu.Lock()
	u := s.userByEmail(in.Email)
	if u == nil || s.passwords[strings.ToLower(in.Email)] != in.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	access, refresh := s.issueTokensLocked(u.ID)
	user := *u
	s.mu.Unlock()

	s.setRefreshCookie(w, refresh)
	writeJSON(w, http.StatusOK, "Login successful", map[string]interface{}{
		"user":         user,
		"access_token": access,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registration
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	errs := map[string][]string{}
	if strings.TrimSpace(in.FullName) == "" {
		errs["full_name"] = append(errs["full_name"], "The full name field is required.")
	}
	if !strings.Contains(in.Email, "@") {
		errs["email"] = append(errs["email"], "The email must be a valid email address.")
	}
	if len(in.Password) < 6 {
		errs["password"] = append(errs["password"], "The password must be at least 6 characters.")
	}
	if in.Password != in.PasswordConfirmation {
		errs["password"] = append(errs["password"], "The password confirmation does not match.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userByEmail(in.Email) != nil {
		errs["email"] = append(errs["email"], "The email has already been taken.")
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	ts := s.timestamp()
	u := &User{ID: s.nextID("user"), FullName: in.FullName, Email: in.Email, Role: "customer", CreatedAt: ts, UpdatedAt: ts}
	s.users[u.ID] = u
	s.passwords[strings.ToLower(in.Email)] = in.Password
	access, refresh := s.issueTokensLocked(u.ID)

	s.setRefreshCookie(w, refresh)
	writeJSON(w, http.StatusCreated, "Registration successful. Please verify your email.", map[string]interface{}{
		"user":         *u,
		"access_token": access,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshCalls++
	delay := s.refreshDelay
	fails := s.refreshFails
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	cookie, err := r.Cookie(refreshCookieName)
	if fails || err != nil {
		writeError(w, http.StatusUnauthorized, "Refresh token missing or invalid", nil)
		return
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[cookie.Value]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Refresh token missing or invalid", nil)
		return
	}
	access := s.nextID("at")
	s.accessTokens[access] = userID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, "Token refreshed", map[string]interface{}{"access_token": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.accessTokens, token)
	if c, err := r.Cookie(refreshCookieName); err == nil {
		delete(s.refreshTokens, c.Value)
	}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, "Logged out", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.users[userIDFrom(r)]
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"user": *u})
}

func (s *Server) handleGoogleURL(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "", map[string]interface{}{
		"url": "https://accounts.google.com/o/oauth2/auth?client_id=fake&response_type=code",
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	var in struct {
		Email string `json:"email"`
	}
	_ = decodeBody(r, &in)

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByEmail(in.Email)
	if u == nil || token == "" || token == "invalid" {
		writeError(w, http.StatusBadRequest, "Invalid or expired verification token", nil)
		return
	}
	u.EmailVerifiedAt = s.timestamp()
	writeJSON(w, http.StatusOK, "Email verified", map[string]interface{}{"user": *u})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	_ = decodeBody(r, &in)

	s.mu.Lock()
	u := s.userByEmail(in.Email)
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, "Verification email sent", nil)
}
