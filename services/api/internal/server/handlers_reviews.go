package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookreview/pkg/domain"
	"bookreview/services/api/internal/app"
)

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	pp, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	q := r.URL.Query()
	page, err := s.app.ListReviews(r.Context(), app.ReviewListParams{
		Page:   pp.Page,
		Limit:  pp.Limit,
		BookID: q.Get("bookId"),
		UserID: q.Get("userId"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.ReviewStats(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", stats)
}

func (s *Server) handleMyReviews(w http.ResponseWriter, r *http.Request, user domain.User) {
	pp, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, stats, err := s.app.MyReviews(r.Context(), user, pp)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       page.Items,
		"pagination": page.Pagination,
		"stats":      stats,
	})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.app.GetReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", review)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ReviewInput
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := s.app.CreateReview(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Review created successfully", review)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ReviewPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := s.app.UpdateReview(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Review updated successfully", review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteReview(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Review deleted successfully", nil)
}
