package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", 0)
	if err := client.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestHealth_NoURLConfigured(t *testing.T) {
	client := NewHTTPClient("", "", 0)
	if err := client.Health(context.Background()); err == nil {
		t.Error("expected error when no remote URL is configured")
	}
}

func TestHealth_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", 0)
	if err := client.Health(context.Background()); err == nil {
		t.Error("expected error on 503")
	}
}

func TestSubmitPattern_NewPattern(t *testing.T) {
	var got PatternSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/patterns/submit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "central-42"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", 0)
	id, err := client.SubmitPattern(context.Background(), PatternSubmission{
		InstanceID:     "inst-1",
		ErrorSignature: "E1",
		Language:       "go",
		Technologies:   []string{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "central-42" {
		t.Errorf("expected central-42, got %q", id)
	}
	if got.ErrorSignature != "E1" {
		t.Errorf("expected signature forwarded, got %q", got.ErrorSignature)
	}
}

func TestSubmitPattern_ExistingPattern(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"existing_pattern_id": "central-7"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", 0)
	id, err := client.SubmitPattern(context.Background(), PatternSubmission{ErrorSignature: "E1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "central-7" {
		t.Errorf("expected existing id central-7, got %q", id)
	}
}

func TestSubmitPattern_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", 0)
	if _, err := client.SubmitPattern(context.Background(), PatternSubmission{}); err == nil {
		t.Error("expected error on 422")
	}
}

func TestSubmitPattern_NoIdentifierInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", 0)
	if _, err := client.SubmitPattern(context.Background(), PatternSubmission{ErrorSignature: "E1"}); err == nil {
		t.Error("expected error when the response carries no identifier")
	}
}

func TestSubmitSolutions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sync/solutions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var batch []SolutionSubmission
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]int{"accepted": len(batch), "failed": 0})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", 0)
	result, err := client.SubmitSolutions(context.Background(), []SolutionSubmission{
		{PatternID: "central-1", Title: "fix", Description: "fix", DifficultyLevel: "intermediate"},
		{PatternID: "central-2", Title: "fix", Description: "fix", DifficultyLevel: "intermediate"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Accepted != 2 || result.Failed != 0 {
		t.Errorf("expected 2 accepted, got %+v", result)
	}
}

func TestClient_NoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("no Authorization header expected without an API key")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", "", 0)
	if err := client.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}
