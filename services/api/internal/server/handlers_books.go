package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookreview/pkg/domain"
	"bookreview/services/api/internal/app"
)

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	pp, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := s.app.ListBooks(r.Context(), app.BookListParams{
		Page:  pp.Page,
		Limit: pp.Limit,
		Genre: r.URL.Query().Get("genre"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	pp, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := s.app.SearchBooks(r.Context(), app.SearchParams{
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

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.app.ListGenres(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", genres)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.app.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", book)
}

func (s *Server) handleBookReviews(w http.ResponseWriter, r *http.Request) {
	pp, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	res, err := s.app.BookReviews(r.Context(), chi.URLParam(r, "id"), pp)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       res.Reviews.Items,
		"book":       res.Book,
		"pagination": res.Reviews.Pagination,
		"stats":      res.Stats,
	})
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.BookInput
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.app.CreateBook(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Book created successfully", book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var req app.BookPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.app.UpdateBook(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Book updated successfully", book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := s.app.DeleteBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Book deleted successfully", nil)
}
