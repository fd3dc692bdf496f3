package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookreview/pkg/domain"
	"bookreview/services/api/internal/app"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	pp, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := s.app.ListUsers(r.Context(), pp)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	pp, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := s.app.SearchUsers(r.Context(), app.SearchParams{
		Q:     r.URL.Query().Get("q"),
		Page:  pp.Page,
		Limit: pp.Limit,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.CreateUser(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "User created successfully", user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req app.UserPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.UpdateUser(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "User updated successfully", user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, actor domain.User) {
	if err := s.app.DeleteUser(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "User deleted successfully", nil)
}
