package remote_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sigil-dev/sigil/internal/remote"
	"github.com/sigil-dev/sigil/internal/store"
	syncwire "github.com/sigil-dev/sigil/internal/sync"
	"github.com/sigil-dev/sigil/internal/types"
)

func newAuthority(t *testing.T, apiKey string) (*remote.Server, *httptest.Server) {
	t.Helper()
	server := remote.NewServer(apiKey)
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return server, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestPatternSubmit_DeduplicatesBySignature(t *testing.T) {
	authority, srv := newAuthority(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/patterns/submit", syncwire.PatternSubmission{
		InstanceID:     "inst-1",
		ErrorSignature: "E1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created["id"] == "" {
		t.Fatal("expected new pattern id")
	}

	// Same signature from another instance maps onto the existing pattern.
	resp = postJSON(t, srv.URL+"/api/v1/patterns/submit", syncwire.PatternSubmission{
		InstanceID:     "inst-2",
		ErrorSignature: "E1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for a known signature, got %d", resp.StatusCode)
	}
	var existing map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
		t.Fatal(err)
	}
	if existing["existing_pattern_id"] != created["id"] {
		t.Errorf("expected existing id %q, got %q", created["id"], existing["existing_pattern_id"])
	}

	if authority.PatternCount() != 1 {
		t.Errorf("expected 1 distinct pattern, got %d", authority.PatternCount())
	}
}

func TestPatternSubmit_RequiresSignature(t *testing.T) {
	_, srv := newAuthority(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/patterns/submit", syncwire.PatternSubmission{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSolutionBatch_CountsPerItem(t *testing.T) {
	authority, srv := newAuthority(t, "")

	resp := postJSON(t, srv.URL+"/api/v1/patterns/submit", syncwire.PatternSubmission{
		ErrorSignature: "E1",
	})
	var created map[string]string
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/sync/solutions", []syncwire.SolutionSubmission{
		{PatternID: created["id"], Title: "real fix", Description: "d", DifficultyLevel: "intermediate"},
		{PatternID: "unknown", Title: "orphan", Description: "d", DifficultyLevel: "intermediate"},
		{PatternID: created["id"], Description: "missing title", DifficultyLevel: "intermediate"},
	})
	defer resp.Body.Close()

	var result syncwire.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Accepted != 1 || result.Failed != 2 {
		t.Errorf("expected 1 accepted / 2 failed, got %+v", result)
	}
	if authority.SolutionCount() != 1 {
		t.Errorf("expected 1 stored solution, got %d", authority.SolutionCount())
	}
}

func TestAuth_ProtectsSubmitButNotHealth(t *testing.T) {
	_, srv := newAuthority(t, "secret")

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health must stay open, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/v1/patterns/submit", syncwire.PatternSubmission{
		ErrorSignature: "E1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without a key, got %d", resp.StatusCode)
	}

	client := syncwire.NewHTTPClient(srv.URL, "secret", time.Second)
	if _, err := client.SubmitPattern(context.Background(), syncwire.PatternSubmission{
		ErrorSignature: "E1",
	}); err != nil {
		t.Errorf("expected authenticated submit to succeed: %v", err)
	}

	bad := syncwire.NewHTTPClient(srv.URL, "wrong", time.Second)
	if _, err := bad.SubmitPattern(context.Background(), syncwire.PatternSubmission{
		ErrorSignature: "E1",
	}); err == nil {
		t.Error("expected rejection with the wrong key")
	}
}

// End to end: a populated local store reconciled against the live authority.
func TestReconcileAgainstAuthority(t *testing.T) {
	_, srv := newAuthority(t, "secret")
	ctx := context.Background()

	db, err := store.NewSQLiteStore(":memory:", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.CaptureError(ctx, types.CaptureParams{
		Signature:   "E1",
		Category:    "TypeError",
		Description: "nil deref in handler",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddSolution(ctx, types.SolutionParams{
		Signature:     "E1",
		Text:          "guard the nil receiver",
		Effectiveness: 5,
	}); err != nil {
		t.Fatal(err)
	}

	client := syncwire.NewHTTPClient(srv.URL, "secret", time.Second)
	rec := syncwire.NewReconciler(db, client, syncwire.Options{
		InstanceID: "inst-1",
		Language:   "go",
	})

	summary := rec.Run(ctx)
	if summary.PatternsSynced != 1 {
		t.Fatalf("expected 1 pattern synced, got %+v", summary)
	}
	if summary.SolutionsSynced != 1 {
		t.Fatalf("expected 1 solution synced, got %+v", summary)
	}
	if summary.BatchAccepted != 1 || summary.BatchFailed != 0 {
		t.Errorf("expected the authority to accept the solution, got %+v", summary)
	}

	// A second pass has nothing left to do.
	summary = rec.Run(ctx)
	if !summary.Clean() || summary.PatternsSynced != 0 || summary.SolutionsSynced != 0 {
		t.Errorf("expected an idle second pass, got %+v", summary)
	}
}
