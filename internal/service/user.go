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

// UserService manages family member profiles. Authentication is external;
// these records only carry what the app renders.
type UserService struct {
	users *entity.Store[model.User, *model.User]
	queue *offline.Queue
	cls   *apperr.Classifier
	log   zerolog.Logger
}

func NewUserService(store docstore.Store, cls *apperr.Classifier, queue *offline.Queue, log zerolog.Logger) *UserService {
	return &UserService{
		users: entity.New[model.User](store, docstore.ColUsers, cls, log),
		queue: queue,
		cls:   cls,
		log:   log,
	}
}

// Create stores a member profile.
func (s *UserService) Create(ctx context.Context, u model.User) (*model.User, error) {
	op := apperr.Op{Name: "users.create", FamilyID: u.FamilyID}
	if err := model.ValidateIDPresent(u.FamilyID, "familyId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	if u.Role != model.RoleParent && u.Role != model.RoleChild {
		return nil, s.cls.Classify(model.ErrValidation, op)
	}
	var out *model.User
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		created, err := s.users.Create(ctx, &u)
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

// Get loads one member.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListMembers returns every member of a family.
func (s *UserService) ListMembers(ctx context.Context, familyID string) ([]*model.User, error) {
	return s.users.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: familyID}},
	})
}

// SetDisplayName updates the visible name.
func (s *UserService) SetDisplayName(ctx context.Context, id, name string) (*model.User, error) {
	op := apperr.Op{Name: "users.setDisplayName", UserID: id}
	var out *model.User
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.users.Update(ctx, id, func(u *model.User) error {
			u.DisplayName = name
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
