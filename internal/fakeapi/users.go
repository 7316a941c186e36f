// ABOUTME: Admin user management routes of the fake API

package fakeapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
)

type userInput struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	s.mu.Lock()
	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	total := len(users)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"users": users[start:end], "total": total})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	u, ok := s.users[id]
	var out User
	if ok {
		out = *u
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]interface{}{"user": out})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in userInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}
	if in.Role != nil && *in.Role != "admin" && *in.Role != "customer" {
		writeValidation(w, map[string][]string{"role": {"The selected role is invalid."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if in.Email != nil && !strings.EqualFold(*in.Email, u.Email) {
		if s.userByEmail(*in.Email) != nil {
			writeValidation(w, map[string][]string{"email": {"The email has already been taken."}})
			return
		}
		pw := s.passwords[strings.ToLower(u.Email)]
		delete(s.passwords, strings.ToLower(u.Email))
		s.passwords[strings.ToLower(*in.Email)] = pw
		u.Email = *in.Email
	}
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Address != nil {
		u.Address = *in.Address
	}
	u.UpdatedAt = s.timestamp()
	writeJSON(w, http.StatusOK, "User updated", map[string]interface{}{"user": *u})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if id == userIDFrom(r) {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account", nil)
		return
	}
	delete(s.passwords, strings.ToLower(u.Email))
	delete(s.users, id)
	delete(s.carts, id)
	for tok, uid := range s.accessTokens {
		if uid == id {
			delete(s.accessTokens, tok)
		}
	}
	writeJSON(w, http.StatusOK, "User deleted", nil)
}
