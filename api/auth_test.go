package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"singlish-bot/model"
)

func TestAuthenticatorRoundTrip(t *testing.T) {
	a := NewAuthenticator("s3cret", "")
	tok, err := a.Sign("u1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "admin" {
		t.Fatalf("claims: %+v", claims)
	}
}

func TestAuthenticatorRejects(t *testing.T) {
	a := NewAuthenticator("s3cret", "admin")

	expired, _ := a.Sign("u1", "", -time.Minute)
	noSubject, _ := a.Sign("", "", time.Minute)
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{
		"expired":    expired,
		"no subject": noSubject,
		"alg none":   unsigned,
		"garbage":    "abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := a.Parse(tok); err == nil {
				t.Fatalf("Parse accepted %s token", name)
			}
		})
	}

	if _, err := NewAuthenticator("", "").Parse(expired); !errors.Is(err, errNoSecret) {
		t.Fatalf("empty secret: want errNoSecret got %v", err)
	}
}

func TestErrorResponse(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&model.ValidationError{Field: "name", Message: "is required"}, http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("get: %w", model.ErrNotFound), http.StatusNotFound, "not_found"},
		{model.ErrDuplicateName, http.StatusConflict, "duplicate_name"},
		{model.ErrForbidden, http.StatusForbidden, "forbidden"},
		{model.ErrCatalogUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, body := errorResponse(tc.err)
		if status != tc.status || body.Error.Code != tc.code {
			t.Fatalf("%v: want=%d/%s got=%d/%s", tc.err, tc.status, tc.code, status, body.Error.Code)
		}
	}
}
