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

// NotificationService stores fan-out records for the external push
// collaborator. Delivery itself is out of scope; this service only writes and
// reads the notifications collection.
type NotificationService struct {
	notifs *entity.Store[model.Notification, *model.Notification]
	queue  *offline.Queue
	log    zerolog.Logger
}

func NewNotificationService(store docstore.Store, cls *apperr.Classifier, queue *offline.Queue, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		notifs: entity.New[model.Notification](store, docstore.ColNotifications, cls, log),
		queue:  queue,
		log:    log,
	}
}

// Notify writes one notification record. An empty recipient means the record
// is family-broadcast; the delivery layer resolves the parent set.
func (s *NotificationService) Notify(ctx context.Context, n model.Notification) (*model.Notification, error) {
	var out *model.Notification
	err := s.queue.Execute(ctx, apperr.Op{Name: "notifications.notify", FamilyID: n.FamilyID},
		func(ctx context.Context) error {
			created, err := s.notifs.Create(ctx, &n)
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

// ListForFamily returns the family's notifications, newest first.
func (s *NotificationService) ListForFamily(ctx context.Context, familyID string, limit int) ([]*model.Notification, error) {
	return s.notifs.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: familyID}},
		Desc:    true,
		Limit:   limit,
	})
}

// ListForRecipient returns notifications addressed to one member.
func (s *NotificationService) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]*model.Notification, error) {
	return s.notifs.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "recipientId", Value: recipientID}},
		Desc:    true,
		Limit:   limit,
	})
}

// MarkRead flags a notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	_, err := s.notifs.Update(ctx, id, func(n *model.Notification) error {
		n.Read = true
		return nil
	})
	return err
}
