package types

import "testing"

func TestEventType_Valid(t *testing.T) {
	for _, typ := range []EventType{EventError, EventSolution, EventMilestone} {
		if !typ.Valid() {
			t.Errorf("expected %q to be valid", typ)
		}
	}
	if EventType("bogus").Valid() {
		t.Error("expected unknown type to be invalid")
	}
	if EventType("").Valid() {
		t.Error("expected empty type to be invalid")
	}
}

func TestPattern_Synced(t *testing.T) {
	var p Pattern
	if p.Synced() {
		t.Error("pattern with no central id must not be synced")
	}

	empty := ""
	p.CentralPatternID = &empty
	if p.Synced() {
		t.Error("empty central id must not count as synced")
	}

	id := "central-1"
	p.CentralPatternID = &id
	if !p.Synced() {
		t.Error("expected synced with a central id")
	}
}

func TestSyncSummary_Clean(t *testing.T) {
	s := &SyncSummary{PatternsSynced: 3, Errors: []string{}}
	if !s.Clean() {
		t.Error("successful pass must be clean")
	}

	if (&SyncSummary{PatternsFailed: 1}).Clean() {
		t.Error("failed patterns must not be clean")
	}
	if (&SyncSummary{SolutionsFailed: 1}).Clean() {
		t.Error("failed solutions must not be clean")
	}
	if (&SyncSummary{Errors: []string{"remote unreachable"}}).Clean() {
		t.Error("pass errors must not be clean")
	}
}
