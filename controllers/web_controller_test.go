package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndexPage(t *testing.T) {
	r := setupTest(t)

	w := doRequest(t, r, testRequest{method: "GET", path: "/"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No polls are available.") {
		t.Error("empty index should say no polls are available")
	}

	createQuestion(t, "Past question", -5, "Yes")
	createQuestion(t, "Future question", 5, "Yes")

	w = doRequest(t, r, testRequest{method: "GET", path: "/"})
	body := w.Body.String()
	if !strings.Contains(body, "Past question") {
		t.Error("index should list published questions")
	}
	if strings.Contains(body, "Future question") {
		t.Error("index must not list unpublished questions")
	}
}

func TestPollPage(t *testing.T) {
	r := setupTest(t)
	user := createUser(t, "Voter", "voter@example.com", "FatChance!", false)
	q := createQuestion(t, "Tabs or spaces?", -1, "Tabs", "Spaces")

	// Anonymous visitors see a login link instead of the form.
	w := doRequest(t, r, testRequest{method: "GET", path: "/polls/" + itoa(q.ID)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/login") {
		t.Error("anonymous detail page should link to login")
	}

	// Authenticated via cookie.
	req := httptest.NewRequest("GET", "/polls/"+itoa(q.ID), nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: tokenFor(t, user)})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "type=\"radio\"") {
		t.Error("authenticated detail page should render the vote form")
	}

	// Unpublished poll is a 404.
	future := createQuestion(t, "Future", 5, "Yes")
	w = doRequest(t, r, testRequest{method: "GET", path: "/polls/" + itoa(future.ID)})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for future poll, got %d", w.Code)
	}
}

func TestResultsPage(t *testing.T) {
	r := setupTest(t)
	q := createQuestion(t, "Tabs or spaces?", -1, "Tabs", "Spaces")

	w := doRequest(t, r, testRequest{method: "GET", path: "/polls/" + itoa(q.ID) + "/results"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Tabs") || !strings.Contains(body, "Total votes: 0") {
		t.Errorf("results page missing tallies: %q", body)
	}
}

func TestLoginFormFlow(t *testing.T) {
	r := setupTest(t)
	createUser(t, "Tester", "tester@example.com", "FatChance!", false)

	w := doRequest(t, r, testRequest{method: "GET", path: "/login"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for login page, got %d", w.Code)
	}

	w = doRequest(t, r, testRequest{
		method: "POST",
		path:   "/login",
		form:   "email=tester%40example.com&password=FatChance%21&next=%2Fpolls%2F1",
		ip:     "10.6.0.1",
	})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 after login, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != "/polls/1" {
		t.Errorf("expected redirect to /polls/1, got %s", got)
	}

	cookieSet := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Error("expected auth cookie after form login")
	}

	// Bad credentials re-render the form.
	w = doRequest(t, r, testRequest{
		method: "POST",
		path:   "/login",
		form:   "email=tester%40example.com&password=nope",
		ip:     "10.6.0.2",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad login, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid email or password") {
		t.Error("expected the error message on the login page")
	}
}

func TestVoteRedirectsBrowserToLogin(t *testing.T) {
	r := setupTest(t)
	q := createQuestion(t, "Question", -1, "Yes")

	req := httptest.NewRequest("POST", "/polls/"+itoa(q.ID)+"/vote",
		strings.NewReader("choice_id="+itoa(q.Choices[0].ID)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.RemoteAddr = "10.6.1.1:51234"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 to login, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "/login") {
		t.Errorf("expected redirect to login, got %s", loc)
	}
}

func TestSignupFormFlow(t *testing.T) {
	r := setupTest(t)

	w := doRequest(t, r, testRequest{
		method: "POST",
		path:   "/signup",
		form:   "name=Newbie&email=new%40example.com&password=FatChance%21",
		ip:     "10.6.2.1",
	})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 after signup, got %d: %s", w.Code, w.Body.String())
	}

	// The new account can log in over the API too.
	resp := doRequest(t, r, testRequest{
		method: "POST",
		path:   "/api/auth/login",
		body:   map[string]string{"email": "new@example.com", "password": "FatChance!"},
		ip:     "10.6.2.2",
	})
	if resp.Code != http.StatusOK {
		t.Errorf("expected the signup account to log in, got %d", resp.Code)
	}
}
