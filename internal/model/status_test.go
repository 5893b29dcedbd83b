package model

import (
	"testing"
	"time"
)

func TestEvaluateStatusDenyWins(t *testing.T) {
	now := time.Now().UTC()
	expires := now.Add(time.Hour)

	approvals := []Approval{
		{ParentID: "p1", Decision: DecisionApprove, DecidedAt: now},
		{ParentID: "p2", Decision: DecisionDeny, DecidedAt: now},
	}
	if got := EvaluateStatus(StatusPending, approvals, expires, now); got != StatusDenied {
		t.Fatalf("approve+deny = %s, want denied", got)
	}

	// Order does not matter: deny first, approve later.
	approvals = []Approval{
		{ParentID: "p2", Decision: DecisionDeny, DecidedAt: now},
		{ParentID: "p1", Decision: DecisionApprove, DecidedAt: now},
	}
	if got := EvaluateStatus(StatusPending, approvals, expires, now); got != StatusDenied {
		t.Fatalf("deny+approve = %s, want denied", got)
	}
}

func TestEvaluateStatusApprove(t *testing.T) {
	now := time.Now().UTC()
	approvals := []Approval{{ParentID: "p1", Decision: DecisionApprove, DecidedAt: now}}
	if got := EvaluateStatus(StatusPending, approvals, now.Add(time.Hour), now); got != StatusApproved {
		t.Fatalf("single approve = %s, want approved", got)
	}
}

func TestEvaluateStatusExpiry(t *testing.T) {
	now := time.Now().UTC()

	// Exactly at the horizon counts as expired.
	if got := EvaluateStatus(StatusPending, nil, now, now); got != StatusExpired {
		t.Fatalf("at horizon = %s, want expired", got)
	}
	if got := EvaluateStatus(StatusPending, nil, now.Add(time.Minute), now); got != StatusPending {
		t.Fatalf("before horizon = %s, want pending", got)
	}

	// A decision recorded before evaluation beats the horizon.
	approvals := []Approval{{ParentID: "p1", Decision: DecisionApprove, DecidedAt: now.Add(-time.Minute)}}
	if got := EvaluateStatus(StatusPending, approvals, now.Add(-time.Hour), now); got != StatusApproved {
		t.Fatalf("approve on expired horizon = %s, want approved", got)
	}
}

func TestEvaluateStatusTerminalImmutable(t *testing.T) {
	now := time.Now().UTC()
	deny := []Approval{{ParentID: "p1", Decision: DecisionDeny, DecidedAt: now}}

	for _, terminal := range []RequestStatus{StatusApproved, StatusDenied, StatusExpired} {
		if got := EvaluateStatus(terminal, deny, now.Add(-time.Hour), now); got != terminal {
			t.Fatalf("terminal %s re-evaluated to %s", terminal, got)
		}
	}
}

func TestRequestEvaluate(t *testing.T) {
	now := time.Now().UTC()
	r := &Request{Status: StatusPending, ExpiresAt: now.Add(-time.Second)}
	if got := r.Evaluate(now); got != StatusExpired {
		t.Fatalf("Evaluate = %s, want expired", got)
	}
	// Evaluate must not mutate the receiver.
	if r.Status != StatusPending {
		t.Fatalf("Evaluate mutated Status to %s", r.Status)
	}
}

func TestTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []RequestStatus{StatusApproved, StatusDenied, StatusExpired} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
