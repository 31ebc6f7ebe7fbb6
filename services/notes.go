package services

import (
	"context"
	"errors"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

// NotesService keeps the professional's private notes for a session.
type NotesService struct {
	store repository.Store
}

func NewNotesService(store repository.Store) *NotesService {
	return &NotesService{store: store}
}

func (s *NotesService) appointment(ctx context.Context, caller Caller, id uint) (*models.Appointment, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, storeErr(err, "appointment not found")
	}
	if err := Authorize(caller, Resource{Kind: ResourceNotes, OwnerID: a.UserID, ProfessionalID: a.ProfessionalID}, ActionWrite); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *NotesService) Save(ctx context.Context, caller Caller, appointmentID uint, content string) (*models.SessionNotes, error) {
	a, err := s.appointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	notes := &models.SessionNotes{
		AppointmentID:  a.ID,
		ProfessionalID: a.ProfessionalID,
		ClientID:       a.UserID,
		Content:        content,
	}
	if err := s.store.UpsertSessionNotes(ctx, notes); err != nil {
		return nil, utils.NewInternal(err)
	}
	saved, err := s.store.GetSessionNotes(ctx, a.ID)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	return saved, nil
}

// Get returns the notes, or empty notes when none were written yet.
func (s *NotesService) Get(ctx context.Context, caller Caller, appointmentID uint) (*models.SessionNotes, error) {
	a, err := s.appointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.GetSessionNotes(ctx, a.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.SessionNotes{AppointmentID: a.ID, ProfessionalID: a.ProfessionalID, ClientID: a.UserID}, nil
	}
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	return notes, nil
}
