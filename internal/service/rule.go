package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/famgate/famgate/internal/apperr"
	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/entity"
	"github.com/famgate/famgate/internal/model"
	"github.com/famgate/famgate/internal/offline"
)

// RuleService manages parent-authored screen-time rules.
type RuleService struct {
	rules *entity.Store[model.Rule, *model.Rule]
	queue *offline.Queue
	cls   *apperr.Classifier
	log   zerolog.Logger
}

func NewRuleService(store docstore.Store, cls *apperr.Classifier, queue *offline.Queue, log zerolog.Logger) *RuleService {
	return &RuleService{
		rules: entity.New[model.Rule](store, docstore.ColRules, cls, log),
		queue: queue,
		cls:   cls,
		log:   log,
	}
}

// Create stores a rule, enabled by default.
func (s *RuleService) Create(ctx context.Context, r model.Rule) (*model.Rule, error) {
	op := apperr.Op{Name: "rules.create", FamilyID: r.FamilyID}
	if err := model.ValidateIDPresent(r.FamilyID, "familyId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	r.Enabled = true
	var out *model.Rule
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		created, err := s.rules.Create(ctx, &r)
		if err != nil {
			return err
		}
		out = created
		return nil
	}, offline.DefaultOptions())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads one rule.
func (s *RuleService) Get(ctx context.Context, id string) (*model.Rule, error) {
	return s.rules.GetByID(ctx, id)
}

// List returns the family's rules.
func (s *RuleService) List(ctx context.Context, familyID string) ([]*model.Rule, error) {
	return s.rules.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: familyID}},
	})
}

// SetEnabled toggles a rule without touching its parameters.
func (s *RuleService) SetEnabled(ctx context.Context, id string, enabled bool) (*model.Rule, error) {
	op := apperr.Op{Name: "rules.setEnabled", RuleID: id}
	var out *model.Rule
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.rules.Update(ctx, id, func(r *model.Rule) error {
			r.Enabled = enabled
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

// Update replaces the mutable rule parameters.
func (s *RuleService) Update(ctx context.Context, id string, mutate func(*model.Rule) error) (*model.Rule, error) {
	op := apperr.Op{Name: "rules.update", RuleID: id}
	var out *model.Rule
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.rules.Update(ctx, id, mutate)
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

// Delete removes a rule.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	op := apperr.Op{Name: "rules.delete", RuleID: id}
	return s.queue.Execute(ctx, op, func(ctx context.Context) error {
		return s.rules.Delete(ctx, id)
	}, offline.DefaultOptions())
}
