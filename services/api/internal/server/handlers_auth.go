package server

import (
	"net/http"

	"bookreview/pkg/domain"
	"bookreview/services/api/internal/app"
	"bookreview/services/api/internal/security"
)

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.Register(r.Context(), req)
	if err != nil {
		s.audit(r, security.EventRegister, security.OutcomeFail, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventRegister, security.OutcomeSuccess, "user_id", user.ID)
	writeData(w, http.StatusCreated, "User registered successfully", authResponse{User: user, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req app.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.Login(r.Context(), req)
	if err != nil {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventLogin, security.OutcomeSuccess, "user_id", user.ID)
	writeData(w, http.StatusOK, "Login successful", authResponse{User: user, Token: token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	profile, err := s.app.Profile(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", profile)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, _ := bearerToken(r)
	fresh, err := s.app.Refresh(r.Context(), user, token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Token refreshed successfully", authResponse{User: user, Token: fresh})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeAppError(w, r, app.ErrUnauthenticated)
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, map[string]any{"keys": s.app.JWKS()})
}
