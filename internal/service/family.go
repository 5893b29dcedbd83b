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

// FamilyService manages the tenant unit every other entity is scoped to.
type FamilyService struct {
	families *entity.Store[model.Family, *model.Family]
	queue    *offline.Queue
	cls      *apperr.Classifier
	log      zerolog.Logger
}

func NewFamilyService(store docstore.Store, cls *apperr.Classifier, queue *offline.Queue, log zerolog.Logger) *FamilyService {
	return &FamilyService{
		families: entity.New[model.Family](store, docstore.ColFamilies, cls, log),
		queue:    queue,
		cls:      cls,
		log:      log,
	}
}

// Create stores a new family owned by ownerID.
func (s *FamilyService) Create(ctx context.Context, name, ownerID, timeZone string) (*model.Family, error) {
	op := apperr.Op{Name: "families.create", UserID: ownerID}
	if err := model.ValidateIDPresent(ownerID, "ownerId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	f := &model.Family{Name: name, OwnerID: ownerID, MemberIDs: []string{ownerID}, TimeZone: timeZone}
	var out *model.Family
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		created, err := s.families.Create(ctx, f)
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

// Get loads one family.
func (s *FamilyService) Get(ctx context.Context, id string) (*model.Family, error) {
	return s.families.GetByID(ctx, id)
}

// AddMember appends userID to the member list (idempotent).
func (s *FamilyService) AddMember(ctx context.Context, familyID, userID string) (*model.Family, error) {
	op := apperr.Op{Name: "families.addMember", FamilyID: familyID, UserID: userID}
	if err := model.ValidateIDPresent(userID, "userId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	var out *model.Family
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.families.Update(ctx, familyID, func(f *model.Family) error {
			for _, id := range f.MemberIDs {
				if id == userID {
					return nil
				}
			}
			f.MemberIDs = append(f.MemberIDs, userID)
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

// Rename updates the display name.
func (s *FamilyService) Rename(ctx context.Context, familyID, name string) (*model.Family, error) {
	op := apperr.Op{Name: "families.rename", FamilyID: familyID}
	var out *model.Family
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.families.Update(ctx, familyID, func(f *model.Family) error {
			f.Name = name
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
