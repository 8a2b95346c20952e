package controllers_test

import (
	"fmt"
	"net/http"
	"testing"
)

func TestRegister(t *testing.T) {
	r := setupTest(t)

	w := doRequest(t, r, testRequest{
		method: "POST",
		path:   "/api/auth/register",
		body:   map[string]string{"name": "Tester", "email": "tester@example.com", "password": "FatChance!"},
		ip:     "10.1.0.1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeJSON(t, w)
	if resp["token"] == "" || resp["token"] == nil {
		t.Error("expected a token in the response")
	}
	user, ok := resp["user"].(map[string]interface{})
	if !ok || user["email"] != "tester@example.com" {
		t.Errorf("unexpected user payload: %v", resp["user"])
	}

	// Same email again is rejected.
	w = doRequest(t, r, testRequest{
		method: "POST",
		path:   "/api/auth/register",
		body:   map[string]string{"name": "Clone", "email": "tester@example.com", "password": "FatChance!"},
		ip:     "10.1.0.2",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := setupTest(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"name": "A", "password": "longenough"}},
		{"bad email", map[string]string{"name": "A", "email": "not-an-email", "password": "longenough"}},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "abc"}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, testRequest{
				method: "POST",
				path:   "/api/auth/register",
				body:   tt.body,
				ip:     fmt.Sprintf("10.1.1.%d", i+1),
			})
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d", w.Code)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	r := setupTest(t)
	createUser(t, "Tester", "tester@example.com", "FatChance!", false)

	w := doRequest(t, r, testRequest{
		method: "POST",
		path:   "/api/auth/login",
		body:   map[string]string{"email": "tester@example.com", "password": "FatChance!"},
		ip:     "10.2.0.1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON(t, w)
	if resp["token"] == nil {
		t.Error("expected a token in the response")
	}

	// The login also sets the auth cookie for the HTML pages.
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected auth_token cookie to be set")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r := setupTest(t)
	createUser(t, "Tester", "tester@example.com", "FatChance!", false)

	tests := []struct {
		name  string
		email string
		pass  string
	}{
		{"wrong password", "tester@example.com", "WrongPass"},
		{"unknown user", "nobody@example.com", "FatChance!"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, testRequest{
				method: "POST",
				path:   "/api/auth/login",
				body:   map[string]string{"email": tt.email, "password": tt.pass},
				ip:     fmt.Sprintf("10.3.0.%d", i+1),
			})
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestGoogleLogin(t *testing.T) {
	r := setupTest(t)

	// Unconfigured server refuses Google sign-in outright.
	t.Setenv("GOOGLE_CLIENT_ID", "")
	w := doRequest(t, r, testRequest{
		method: "POST",
		path:   "/api/auth/google",
		body:   map[string]string{"id_token": "whatever"},
		ip:     "10.4.0.1",
	})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 without GOOGLE_CLIENT_ID, got %d", w.Code)
	}

	t.Setenv("GOOGLE_CLIENT_ID", "test-client-id.apps.googleusercontent.com")

	// Missing id_token fails binding.
	w = doRequest(t, r, testRequest{
		method: "POST",
		path:   "/api/auth/google",
		body:   map[string]string{},
		ip:     "10.4.0.2",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without id_token, got %d", w.Code)
	}

	// A token that is not even a JWT is rejected before any network call.
	w = doRequest(t, r, testRequest{
		method: "POST",
		path:   "/api/auth/google",
		body:   map[string]string{"id_token": "not-a-jwt"},
		ip:     "10.4.0.3",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a malformed token, got %d", w.Code)
	}
}

func TestMe(t *testing.T) {
	r := setupTest(t)
	user := createUser(t, "Tester", "tester@example.com", "FatChance!", false)

	w := doRequest(t, r, testRequest{method: "GET", path: "/api/me", token: tokenFor(t, user)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeJSON(t, w)
	me, _ := resp["user"].(map[string]interface{})
	if me["email"] != "tester@example.com" {
		t.Errorf("unexpected user: %v", resp["user"])
	}

	// No token at all.
	w = doRequest(t, r, testRequest{method: "GET", path: "/api/me"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	// Garbage token.
	w = doRequest(t, r, testRequest{method: "GET", path: "/api/me", token: "not-a-jwt"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with invalid token, got %d", w.Code)
	}
}
