package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("S3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "S3cret" {
		t.Fatalf("expected opaque hash, got %q", hash)
	}
	if !CheckPassword("S3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
}

func TestHashPasswordRejectsOversizedInput(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("Secret1"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	tests := []struct {
		password string
		want     error
	}{
		{password: "Ab1", want: ErrPasswordTooShort},
		{password: "alllower123", want: ErrPasswordWeak},
		{password: "ALLUPPER123", want: ErrPasswordWeak},
		{password: "NoDigitsHere", want: ErrPasswordWeak},
	}
	for _, tc := range tests {
		if err := ValidatePassword(tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.password, err, tc.want)
		}
	}
}

func TestValidatePasswordLength(t *testing.T) {
	if err := ValidatePasswordLength("alllower"); err != nil {
		t.Fatalf("length rule must not demand mixed classes, got %v", err)
	}
	if err := ValidatePasswordLength("abcde"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := ValidatePasswordLength(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}
