package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/entity"
	"github.com/famgate/famgate/internal/model"
	"github.com/famgate/famgate/internal/offline"
)

// DefaultRequestExpiry is the pending horizon when none is configured.
const DefaultRequestExpiry = 24 * time.Hour

// RequestService owns the request lifecycle. Status is never written
// directly: every transition goes through model.EvaluateStatus, and approval
// appends are version-checked read-modify-writes so concurrent parent
// decisions cannot overwrite each other.
type RequestService struct {
	requests *entity.Store[model.Request, *model.Request]
	notifs   *NotificationService
	queue    *offline.Queue
	cls      *apperr.Classifier
	expiry   time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewRequestService(store docstore.Store, cls *apperr.Classifier, queue *offline.Queue, notifs *NotificationService, expiry time.Duration, log zerolog.Logger) *RequestService {
	if expiry <= 0 {
		expiry = DefaultRequestExpiry
	}
	return &RequestService{
		requests: entity.New[model.Request](store, docstore.ColRequests, cls, log),
		notifs:   notifs,
		queue:    queue,
		cls:      cls,
		expiry:   expiry,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source, including the stored timestamps. Test
// hook.
func (s *RequestService) WithClock(now func() time.Time) *RequestService {
	s.now = now
	s.requests.WithClock(now)
	return s
}

// CreateRequestInput carries a child's ask.
type CreateRequestInput struct {
	FamilyID        string
	RequesterID     string
	Kind            model.RequestKind
	Target          string
	DurationMinutes int
	Reason          string
}

// Create opens a pending request expiring after the configured horizon.
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*model.Request, error) {
	op := apperr.Op{Name: "requests.create", FamilyID: in.FamilyID, UserID: in.RequesterID}
	if err := model.ValidateIDPresent(in.FamilyID, "familyId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	if err := model.ValidateIDPresent(in.RequesterID, "requesterId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	if err := model.ValidateRequestKind(in.Kind); err != nil {
		return nil, s.cls.Classify(err, op)
	}

	req := &model.Request{
		FamilyID:        in.FamilyID,
		RequesterID:     in.RequesterID,
		Kind:            in.Kind,
		Target:          in.Target,
		DurationMinutes: in.DurationMinutes,
		Reason:          in.Reason,
		Status:          model.StatusPending,
		ExpiresAt:       s.now().UTC().Add(s.expiry),
	}

	var out *model.Request
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		created, err := s.requests.Create(ctx, req)
		if err != nil {
			return err
		}
		out = created
		return nil
	}, offline.DefaultOptions())
	if err != nil {
		return nil, err
	}

	// Independent write: a failed notification never rolls back the request.
	if _, nerr := s.notifs.Notify(ctx, model.Notification{
		FamilyID:  out.FamilyID,
		Kind:      model.NotifRequestReceived,
		Title:     "New request from your child",
		RequestID: out.DocID,
	}); nerr != nil {
		s.log.Warn().Err(nerr).Str("request", out.DocID).Msg("request notification failed")
	}
	return out, nil
}

// Get loads a request, lazily applying the expiry transition. A newly
// observed pending→expired flip is persisted best-effort; the returned value
// always reflects the evaluation.
func (s *RequestService) Get(ctx context.Context, id string) (*model.Request, error) {
	r, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	evaluated := r.Evaluate(now)
	if evaluated == r.Status {
		return r, nil
	}
	persisted, uerr := s.requests.Update(ctx, id, func(req *model.Request) error {
		req.Status = req.Evaluate(now)
		return nil
	})
	if uerr != nil {
		s.log.Warn().Err(uerr).Str("request", id).Msg("lazy expiry persist failed")
		r.Status = evaluated
		return r, nil
	}
	return persisted, nil
}

// List returns the family's requests, newest first.
func (s *RequestService) List(ctx context.Context, familyID string) ([]*model.Request, error) {
	return s.requests.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: familyID}},
		Desc:    true,
	})
}

// ListPending returns the family's pending requests.
func (s *RequestService) ListPending(ctx context.Context, familyID string) ([]*model.Request, error) {
	return s.requests.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "familyId", Value: familyID},
			{Field: "status", Value: string(model.StatusPending)},
		},
	})
}

// Approve records a parent's approval.
func (s *RequestService) Approve(ctx context.Context, id, parentID, reason string) (*model.Request, error) {
	return s.decide(ctx, id, parentID, model.DecisionApprove, reason)
}

// Deny records a parent's denial. A single deny locks the request to denied.
func (s *RequestService) Deny(ctx context.Context, id, parentID, reason string) (*model.Request, error) {
	return s.decide(ctx, id, parentID, model.DecisionDeny, reason)
}

func (s *RequestService) decide(ctx context.Context, id, parentID string, decision model.Decision, reason string) (*model.Request, error) {
	op := apperr.Op{Name: "requests.decide", RequestID: id, UserID: parentID}
	if err := model.ValidateIDPresent(parentID, "parentId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	if err := model.ValidateDecision(decision); err != nil {
		return nil, s.cls.Classify(err, op)
	}

	now := s.now().UTC()
	var out *model.Request
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.requests.Update(ctx, id, func(req *model.Request) error {
			// Evaluate first so a decision on a silently expired request is
			// rejected, not appended.
			if st := req.Evaluate(now); st.Terminal() {
				return fmt.Errorf("request is already %s: %w", st, model.ErrConflict)
			}
			req.Approvals = append(req.Approvals, model.Approval{
				ParentID:  parentID,
				Decision:  decision,
				Reason:    reason,
				DecidedAt: now,
			})
			req.Status = model.EvaluateStatus(model.StatusPending, req.Approvals, req.ExpiresAt, now)
			return nil
		})
		if err != nil {
			return err
		}
		out = updated
		return nil
	}, offline.DefaultOptions())
	if err != nil {
		return nil, err
	}

	kind := model.NotifRequestApproved
	title := "Your request was approved"
	if out.Status == model.StatusDenied {
		kind = model.NotifRequestDenied
		title = "Your request was denied"
	}
	if _, nerr := s.notifs.Notify(ctx, model.Notification{
		FamilyID:    out.FamilyID,
		RecipientID: out.RequesterID,
		Kind:        kind,
		Title:       title,
		RequestID:   out.DocID,
	}); nerr != nil {
		s.log.Warn().Err(nerr).Str("request", out.DocID).Msg("decision notification failed")
	}
	return out, nil
}

// Extend pushes a pending request's expiry forward. Extending a terminal
// request is rejected rather than silently accepted.
func (s *RequestService) Extend(ctx context.Context, id string, by time.Duration) (*model.Request, error) {
	op := apperr.Op{Name: "requests.extend", RequestID: id}
	if by <= 0 {
		return nil, s.cls.Classify(fmt.Errorf("extension must be positive: %w", model.ErrValidation), op)
	}
	now := s.now().UTC()
	var out *model.Request
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.requests.Update(ctx, id, func(req *model.Request) error {
			if st := req.Evaluate(now); st.Terminal() {
				return fmt.Errorf("request is already %s: %w", st, model.ErrConflict)
			}
			req.ExpiresAt = req.ExpiresAt.Add(by)
			return nil
		})
		if err != nil {
			return err
		}
		out = updated
		return nil
	}, offline.DefaultOptions())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SweepExpired applies the expiry transition to every pending request past
// its horizon. The sweep and the lazy read path share model.EvaluateStatus,
// so the two can never disagree.
func (s *RequestService) SweepExpired(ctx context.Context) (int, error) {
	pending, err := s.requests.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "status", Value: string(model.StatusPending)}},
	})
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	expired := 0
	for _, r := range pending {
		if r.Evaluate(now) != model.StatusExpired {
			continue
		}
		if _, uerr := s.requests.Update(ctx, r.DocID, func(req *model.Request) error {
			req.Status = req.Evaluate(now)
			return nil
		}); uerr != nil {
			s.log.Warn().Err(uerr).Str("request", r.DocID).Msg("expiry sweep update failed")
			continue
		}
		expired++
	}
	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("expiry sweep complete")
	}
	return expired, nil
}

// CleanupExpired deletes expired requests older than the retention window.
// Approved and denied history is never removed.
func (s *RequestService) CleanupExpired(ctx context.Context, retention time.Duration) (int, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		return 0, err
	}
	old, err := s.requests.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "status", Value: string(model.StatusExpired)}},
	})
	if err != nil {
		return 0, err
	}
	cutoff := s.now().UTC().Add(-retention)
	removed := 0
	for _, r := range old {
		if r.UpdatedAt.After(cutoff) {
			continue
		}
		if derr := s.requests.Delete(ctx, r.DocID); derr != nil {
			s.log.Warn().Err(derr).Str("request", r.DocID).Msg("cleanup delete failed")
			continue
		}
		removed++
	}
	return removed, nil
}
