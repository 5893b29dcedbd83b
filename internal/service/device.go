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

// DeviceService manages child devices paired into a family.
type DeviceService struct {
	devices *entity.Store[model.Device, *model.Device]
	notifs  *NotificationService
	queue   *offline.Queue
	cls     *apperr.Classifier
	log     zerolog.Logger
}

func NewDeviceService(store docstore.Store, cls *apperr.Classifier, queue *offline.Queue, notifs *NotificationService, log zerolog.Logger) *DeviceService {
	return &DeviceService{
		devices: entity.New[model.Device](store, docstore.ColDevices, cls, log),
		notifs:  notifs,
		queue:   queue,
		cls:     cls,
		log:     log,
	}
}

// Pair registers a device as active and notifies the family.
func (s *DeviceService) Pair(ctx context.Context, familyID, ownerID, name, platform string) (*model.Device, error) {
	op := apperr.Op{Name: "devices.pair", FamilyID: familyID, UserID: ownerID}
	if err := model.ValidateIDPresent(familyID, "familyId"); err != nil {
		return nil, s.cls.Classify(err, op)
	}
	d := &model.Device{FamilyID: familyID, OwnerID: ownerID, Name: name, Platform: platform, Status: model.DeviceActive}
	var out *model.Device
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		created, err := s.devices.Create(ctx, d)
		if err != nil {
			return err
		}
		out = created
		return nil
	}, offline.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if _, nerr := s.notifs.Notify(ctx, model.Notification{
		FamilyID: familyID,
		Kind:     model.NotifDevicePaired,
		Title:    "A new device was paired",
	}); nerr != nil {
		s.log.Warn().Err(nerr).Str("device", out.DocID).Msg("pairing notification failed")
	}
	return out, nil
}

// Get loads one device.
func (s *DeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	return s.devices.GetByID(ctx, id)
}

// List returns the family's devices.
func (s *DeviceService) List(ctx context.Context, familyID string) ([]*model.Device, error) {
	return s.devices.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{{Field: "familyId", Value: familyID}},
	})
}

// SetStatus moves the device between active, paused and unpaired.
func (s *DeviceService) SetStatus(ctx context.Context, id string, status model.DeviceStatus) (*model.Device, error) {
	op := apperr.Op{Name: "devices.setStatus", DeviceID: id}
	var out *model.Device
	err := s.queue.Execute(ctx, op, func(ctx context.Context) error {
		updated, err := s.devices.Update(ctx, id, func(d *model.Device) error {
			d.Status = status
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

// Unpair removes the device record.
func (s *DeviceService) Unpair(ctx context.Context, id string) error {
	op := apperr.Op{Name: "devices.unpair", DeviceID: id}
	return s.queue.Execute(ctx, op, func(ctx context.Context) error {
		return s.devices.Delete(ctx, id)
	}, offline.DefaultOptions())
}
