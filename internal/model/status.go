package model

import "time"

// EvaluateStatus derives a request's status from its approval sequence and
// expiry. It is the single authority for the lifecycle transition; the lazy
// read path and the periodic sweep both call it so the two can never diverge.
//
// Rules, in order:
//   - a terminal status never changes;
//   - any deny locks the request to denied, regardless of position or count;
//   - otherwise any approve yields approved;
//   - otherwise a pending request past its expiry is expired;
//   - otherwise it stays pending.
func EvaluateStatus(current RequestStatus, approvals []Approval, expiresAt, now time.Time) RequestStatus {
	if current.Terminal() {
		return current
	}
	approved := false
	for _, a := range approvals {
		switch a.Decision {
		case DecisionDeny:
			return StatusDenied
		case DecisionApprove:
			approved = true
		}
	}
	if approved {
		return StatusApproved
	}
	if !now.Before(expiresAt) {
		return StatusExpired
	}
	return StatusPending
}

// Evaluate recomputes r.Status at the given instant.
func (r *Request) Evaluate(now time.Time) RequestStatus {
	return EvaluateStatus(r.Status, r.Approvals, r.ExpiresAt, now)
}
