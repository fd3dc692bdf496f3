package validation

import (
	"errors"
	"testing"

	"bookreview/internal/apperr"
)

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,notblank,min=2,max=50"`
}

type bookInput struct {
	Title     string   `json:"title" validate:"required,max=200"`
	Genre     []string `json:"genre" validate:"required,min=1,dive,required,max=50"`
	Published string   `json:"published" validate:"required,isodate"`
}

type pageQuery struct {
	Page  int `query:"page" validate:"gte=1"`
	Limit int `query:"limit" validate:"gte=1,lte=100"`
}

func TestValidateAcceptsValidInput(t *testing.T) {
	v := New()
	err := v.Validate(registerInput{Email: "ada@example.com", Password: "Secret1", Name: "Ada"})
	if err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestValidateReportsFieldDetails(t *testing.T) {
	v := New()
	err := v.Validate(registerInput{Email: "nope", Password: "abc", Name: "A"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	ae, _ := apperr.As(err)
	for _, field := range []string{"email", "password", "name"} {
		if ae.Details[field] == "" {
			t.Fatalf("missing detail for %s: %#v", field, ae.Details)
		}
	}
	if got := ae.Details["password"]; got != "must be at least 6 characters" {
		t.Fatalf("unexpected password message %q", got)
	}
}

func TestValidateSliceAndDate(t *testing.T) {
	v := New()
	err := v.Validate(bookInput{Title: "Dune", Genre: []string{"sf", ""}, Published: "1965-08-01"})
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected apperr, got %v", err)
	}
	if _, ok := ae.Details["genre[1]"]; !ok {
		t.Fatalf("expected genre[1] detail, got %#v", ae.Details)
	}

	err = v.Validate(bookInput{Title: "Dune", Genre: []string{"sf"}, Published: "August 1965"})
	ae, ok = apperr.As(err)
	if !ok || ae.Details["published"] != "must be a valid ISO 8601 date" {
		t.Fatalf("expected published detail, got %v", err)
	}

	if err := v.Validate(bookInput{Title: "Dune", Genre: []string{"sf"}, Published: "1965-08-01T00:00:00Z"}); err != nil {
		t.Fatalf("rfc3339 date should pass: %v", err)
	}
}

func TestValidatePageBounds(t *testing.T) {
	v := New()
	tests := []struct {
		q     pageQuery
		field string
	}{
		{q: pageQuery{Page: 0, Limit: 10}, field: "page"},
		{q: pageQuery{Page: 1, Limit: 0}, field: "limit"},
		{q: pageQuery{Page: 1, Limit: 101}, field: "limit"},
	}
	for _, tc := range tests {
		ae, ok := apperr.As(v.Validate(tc.q))
		if !ok {
			t.Fatalf("%+v: expected validation error", tc.q)
		}
		if _, ok := ae.Details[tc.field]; !ok {
			t.Fatalf("%+v: expected %s detail, got %#v", tc.q, tc.field, ae.Details)
		}
	}
	if err := v.Validate(pageQuery{Page: 3, Limit: 100}); err != nil {
		t.Fatalf("valid page rejected: %v", err)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2020-02-29")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Year() != 2020 || got.Month() != 2 || got.Day() != 29 {
		t.Fatalf("unexpected date %v", got)
	}
	if _, err := ParseDate("2021-02-30"); err == nil {
		t.Fatalf("expected invalid calendar date to fail")
	}
}
