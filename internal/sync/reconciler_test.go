package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/sigil-dev/sigil/internal/types"
)

type fakeClient struct {
	healthErr  error
	submitErr  map[string]error
	batchErr   error
	batchCalls [][]SolutionSubmission
	submitted  []PatternSubmission
	nextID     int
}

func (f *fakeClient) Health(_ context.Context) error { return f.healthErr }

func (f *fakeClient) SubmitPattern(_ context.Context, sub PatternSubmission) (string, error) {
	if err := f.submitErr[sub.ErrorSignature]; err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, sub)
	f.nextID++
	return "central-" + sub.ErrorSignature, nil
}

func (f *fakeClient) SubmitSolutions(_ context.Context, batch []SolutionSubmission) (*BatchResult, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	f.batchCalls = append(f.batchCalls, batch)
	return &BatchResult{Accepted: len(batch)}, nil
}

type fakeSyncStore struct {
	patterns  []types.Pattern
	solutions []types.UnsyncedSolution
	markedPat map[string]string
	markedSol map[string]string
	listErr   error
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{
		markedPat: map[string]string{},
		markedSol: map[string]string{},
	}
}

func (f *fakeSyncStore) UnsyncedPatterns(_ context.Context) ([]types.Pattern, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []types.Pattern
	for _, p := range f.patterns {
		if _, done := f.markedPat[p.ID]; !done {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSyncStore) UnsyncedSolutions(_ context.Context) ([]types.UnsyncedSolution, error) {
	var out []types.UnsyncedSolution
	for _, s := range f.solutions {
		if _, done := f.markedSol[s.EventID]; done {
			continue
		}
		// Mirror the live join: pick up the owning pattern's central id.
		for _, p := range f.patterns {
			if p.Signature == s.TargetSignature {
				if central, ok := f.markedPat[p.ID]; ok {
					c := central
					s.CentralPatternID = &c
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSyncStore) MarkPatternSynced(_ context.Context, id, centralID string) error {
	f.markedPat[id] = centralID
	return nil
}

func (f *fakeSyncStore) MarkSolutionSynced(_ context.Context, eventID, centralRef string) error {
	f.markedSol[eventID] = centralRef
	return nil
}

func TestRun_UnreachableRemoteAbortsWithoutProgress(t *testing.T) {
	st := newFakeSyncStore()
	st.patterns = []types.Pattern{{ID: "p1", Signature: "E1"}}
	client := &fakeClient{healthErr: errors.New("connection refused")}

	summary := NewReconciler(st, client, Options{}).Run(context.Background())

	if summary.PatternsSynced != 0 || summary.SolutionsSynced != 0 {
		t.Error("expected zero progress when the probe fails")
	}
	if len(summary.Errors) == 0 {
		t.Error("expected the probe failure surfaced in the summary")
	}
	if len(st.markedPat) != 0 {
		t.Error("no pattern may be marked synced without an acknowledgement")
	}
}

func TestRun_SyncsPatternsAndRecordsCentralIDs(t *testing.T) {
	st := newFakeSyncStore()
	st.patterns = []types.Pattern{
		{ID: "p1", Signature: "E1", Category: "TypeError"},
		{ID: "p2", Signature: "E2"},
	}
	client := &fakeClient{}

	summary := NewReconciler(st, client, Options{
		InstanceID: "inst-1",
		Language:   "go",
	}).Run(context.Background())

	if summary.PatternsSynced != 2 {
		t.Errorf("expected 2 patterns synced, got %d", summary.PatternsSynced)
	}
	if st.markedPat["p1"] != "central-E1" {
		t.Errorf("expected central id recorded for p1, got %q", st.markedPat["p1"])
	}
	if client.submitted[0].InstanceID != "inst-1" {
		t.Errorf("expected instance id on submission, got %q", client.submitted[0].InstanceID)
	}
	if client.submitted[0].Technologies == nil {
		t.Error("technologies must serialize as an empty array, not null")
	}
}

func TestRun_PatternFailureIsIsolated(t *testing.T) {
	st := newFakeSyncStore()
	st.patterns = []types.Pattern{
		{ID: "p1", Signature: "E1"},
		{ID: "p2", Signature: "E2"},
	}
	client := &fakeClient{submitErr: map[string]error{"E1": errors.New("422")}}

	summary := NewReconciler(st, client, Options{}).Run(context.Background())

	if summary.PatternsSynced != 1 {
		t.Errorf("expected the healthy pattern to sync, got %d", summary.PatternsSynced)
	}
	if summary.PatternsFailed != 1 {
		t.Errorf("expected 1 failure, got %d", summary.PatternsFailed)
	}
	if _, ok := st.markedPat["p1"]; ok {
		t.Error("failed pattern must stay unsynced for the next pass")
	}
}

func TestRun_SolutionsWaitForTheirPattern(t *testing.T) {
	st := newFakeSyncStore()
	st.patterns = []types.Pattern{{ID: "p1", Signature: "E1"}}
	st.solutions = []types.UnsyncedSolution{
		{EventID: "ev1", TargetSignature: "E1", Text: "pin the dependency", Effectiveness: 4},
	}
	failing := &fakeClient{submitErr: map[string]error{"E1": errors.New("500")}}

	// First pass: pattern fails, so its solution is deferred.
	summary := NewReconciler(st, failing, Options{}).Run(context.Background())
	if summary.SolutionsSynced != 0 {
		t.Errorf("expected no solutions synced while pattern is unsynced, got %d", summary.SolutionsSynced)
	}
	if summary.SolutionsFailed != 1 {
		t.Errorf("expected the deferred solution counted as failed, got %d", summary.SolutionsFailed)
	}

	// Second pass with a healthy remote: pattern then solution, in order.
	healthy := &fakeClient{}
	summary = NewReconciler(st, healthy, Options{}).Run(context.Background())
	if summary.PatternsSynced != 1 {
		t.Fatalf("expected pattern synced, got %d", summary.PatternsSynced)
	}
	if summary.SolutionsSynced != 1 {
		t.Errorf("expected deferred solution synced on the next pass, got %d", summary.SolutionsSynced)
	}
	if len(healthy.batchCalls) != 1 {
		t.Fatalf("expected one batch call, got %d", len(healthy.batchCalls))
	}
	if healthy.batchCalls[0][0].PatternID != "central-E1" {
		t.Errorf("solution must reference the central pattern id, got %q", healthy.batchCalls[0][0].PatternID)
	}
}

func TestRun_SecondPassIsIdempotent(t *testing.T) {
	st := newFakeSyncStore()
	st.patterns = []types.Pattern{{ID: "p1", Signature: "E1"}}
	st.solutions = []types.UnsyncedSolution{
		{EventID: "ev1", TargetSignature: "E1", Text: "fix", Effectiveness: 4},
	}
	client := &fakeClient{}
	rec := NewReconciler(st, client, Options{})

	first := rec.Run(context.Background())
	if first.PatternsSynced != 1 || first.SolutionsSynced != 1 {
		t.Fatalf("expected full first pass, got %+v", first)
	}

	second := rec.Run(context.Background())
	if second.PatternsSynced != 0 || second.SolutionsSynced != 0 ||
		second.PatternsFailed != 0 || second.SolutionsFailed != 0 {
		t.Errorf("expected an empty second pass, got %+v", second)
	}
	if !second.Clean() {
		t.Error("expected a clean second pass")
	}
}

func TestRun_BatchRejectionKeepsSolutionsUnsynced(t *testing.T) {
	st := newFakeSyncStore()
	st.patterns = []types.Pattern{{ID: "p1", Signature: "E1"}}
	st.markedPat["p1"] = "central-E1"
	st.solutions = []types.UnsyncedSolution{
		{EventID: "ev1", TargetSignature: "E1", Text: "fix", Effectiveness: 4},
	}
	client := &fakeClient{batchErr: errors.New("503")}

	summary := NewReconciler(st, client, Options{}).Run(context.Background())

	if summary.SolutionsFailed != 1 {
		t.Errorf("expected batch members counted as failed, got %d", summary.SolutionsFailed)
	}
	if len(st.markedSol) != 0 {
		t.Error("rejected batch must leave solutions unsynced")
	}
}

func TestRun_StoreReadFailureGoesInSummary(t *testing.T) {
	st := newFakeSyncStore()
	st.listErr = errors.New("database is locked")

	summary := NewReconciler(st, &fakeClient{}, Options{}).Run(context.Background())

	if len(summary.Errors) == 0 {
		t.Error("expected local read failure surfaced in the summary")
	}
}

func TestSolutionTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"short fix", "short fix"},
		{"first line\nsecond line", "first line"},
		{"  padded  \nrest", "padded"},
	}
	for _, tc := range cases {
		if got := solutionTitle(tc.in); got != tc.want {
			t.Errorf("solutionTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := make([]rune, 120)
	for i := range long {
		long[i] = 'x'
	}
	if got := solutionTitle(string(long)); len([]rune(got)) != 80 {
		t.Errorf("expected title bounded at 80 runes, got %d", len([]rune(got)))
	}
}
