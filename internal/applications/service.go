package applications

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobtracker-backend/internal/attachments"
	"jobtracker-backend/internal/queue"
	"jobtracker-backend/internal/shared/metrics"
	"jobtracker-backend/internal/shared/telemetry"
)

// AttachmentStore is the blob store holding resumes. Put validates the bytes
// against the upload policy before anything is written.
type AttachmentStore interface {
	Put(ctx context.Context, ownerID, fileName, declaredType string, data []byte) (attachments.Stored, error)
	Get(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// ChangeListener is told after an owner's applications changed.
type ChangeListener interface {
	Invalidate(ctx context.Context, ownerID string)
}

// Upload is a resume file attached to a create or update command.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Service contains business logic for job applications.
type Service struct {
	Repo        Repo
	Attachments AttachmentStore
	Events      queue.Client
	OnChange    ChangeListener
	Now         func() time.Time
	NewID       func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Create validates the command, stores the optional resume and persists the record.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput, upload *Upload) (Application, error) {
	app, err := NewApplication(s.newID(), ownerID, in, s.now())
	if err != nil {
		return Application{}, err
	}

	var stored *attachments.Stored
	if upload != nil {
		st, err := s.storeUpload(ctx, ownerID, *upload)
		if err != nil {
			return Application{}, err
		}
		stored = &st
		app.SetAttachment(toAttachment(st, upload.FileName), app.CreatedAt)
	}

	if err := s.Repo.Create(ctx, app); err != nil {
		if stored != nil {
			s.discardBlob(ctx, stored.Handle)
		}
		return Application{}, storageErr("create application", err)
	}

	metrics.IncApplicationsCreated()
	s.changed(ctx, ownerID)
	telemetry.Info("application.created", map[string]any{
		"application_id": app.ID,
		"owner_id":       ownerID,
		"status":         string(app.CurrentStatus),
		"has_attachment": app.Attachment != nil,
	})
	return app, nil
}

// Get returns one of the owner's applications.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Application, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(id) == "" {
		return Application{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, ownerID, id)
}

// List returns the owner's applications.
func (s *Service) List(ctx context.Context, ownerID string, opts ListOptions) ([]Application, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, invalidField("ownerId", "owner is required")
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, invalidField("status", "Invalid status")
	}
	return s.Repo.ListByOwner(ctx, ownerID, opts)
}

// Update applies a partial field update, an optional status transition and an
// optional replacement resume as one record write.
func (s *Service) Update(ctx context.Context, ownerID, id string, patch Patch, upload *Upload) (Application, error) {
	var next *Status
	if patch.Status != nil && strings.TrimSpace(*patch.Status) != "" {
		parsed, ok := ParseStatus(*patch.Status)
		if !ok {
			return Application{}, invalidField("currentStatus", "Invalid status")
		}
		next = &parsed
	}
	if err := validatePatch(patch); err != nil {
		return Application{}, err
	}

	var stored *attachments.Stored
	if upload != nil {
		st, err := s.storeUpload(ctx, ownerID, *upload)
		if err != nil {
			return Application{}, err
		}
		stored = &st
	}

	transitioned := false
	removedHandle := ""
	now := s.now()
	updated, err := s.Repo.Update(ctx, ownerID, id, func(app *Application) error {
		if err := app.ApplyPatch(patch, now); err != nil {
			return err
		}
		if next != nil {
			changed, err := app.TransitionStatus(*next, patch.StatusNotes, now)
			if err != nil {
				return err
			}
			transitioned = changed
		}
		if stored != nil {
			prev := app.Attachment
			if err := s.replaceAttachment(ctx, app, toAttachment(*stored, upload.FileName), now); err != nil {
				return err
			}
			if prev != nil {
				removedHandle = prev.Handle
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case stored == nil:
		case removedHandle != "":
			// The previous blob is already gone; the stored record must not keep
			// pointing at it.
			s.relinkAttachment(ctx, ownerID, id, removedHandle, toAttachment(*stored, upload.FileName), now)
		default:
			s.discardBlob(ctx, stored.Handle)
		}
		return Application{}, err
	}

	s.changed(ctx, ownerID)
	if transitioned {
		s.statusChanged(ctx, updated)
	}
	return updated, nil
}

// TransitionStatus moves an application to next. Moving to the current status
// leaves the record untouched.
func (s *Service) TransitionStatus(ctx context.Context, ownerID, id, next string, notes *string) (Application, error) {
	return s.Update(ctx, ownerID, id, Patch{Status: &next, StatusNotes: notes}, nil)
}

// AttachResume stores upload and makes it the application's only attachment.
// The previous blob is deleted before the new reference is installed; if that
// delete fails the old attachment stays in place.
func (s *Service) AttachResume(ctx context.Context, ownerID, id string, upload Upload) (Application, error) {
	return s.Update(ctx, ownerID, id, Patch{}, &upload)
}

// DetachResume deletes the application's resume blob and clears the reference.
func (s *Service) DetachResume(ctx context.Context, ownerID, id string) (Application, error) {
	now := s.now()
	updated, err := s.Repo.Update(ctx, ownerID, id, func(app *Application) error {
		if app.Attachment == nil {
			return ErrNotFound
		}
		if err := s.Attachments.Delete(ctx, app.Attachment.Handle); err != nil {
			return storageErr("delete attachment", err)
		}
		app.SetAttachment(nil, now)
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	s.changed(ctx, ownerID)
	return updated, nil
}

// Delete removes the application after deleting its resume blob. A failed blob
// delete aborts the command and leaves the record in place.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	app, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if app.Attachment != nil {
		if err := s.Attachments.Delete(ctx, app.Attachment.Handle); err != nil {
			return storageErr("delete attachment", err)
		}
	}
	if err := s.Repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	metrics.IncApplicationsDeleted()
	s.changed(ctx, ownerID)
	telemetry.Info("application.deleted", map[string]any{
		"application_id": id,
		"owner_id":       ownerID,
	})
	return nil
}

// OpenResume returns the attachment metadata and a reader over its bytes.
func (s *Service) OpenResume(ctx context.Context, ownerID, id string) (Attachment, io.ReadCloser, error) {
	app, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Attachment{}, nil, err
	}
	if app.Attachment == nil {
		return Attachment{}, nil, ErrNotFound
	}
	rc, err := s.Attachments.Get(ctx, app.Attachment.Handle)
	if err != nil {
		if errors.Is(err, attachments.ErrNotFound) {
			return Attachment{}, nil, ErrNotFound
		}
		return Attachment{}, nil, storageErr("open attachment", err)
	}
	return *app.Attachment, rc, nil
}

func (s *Service) storeUpload(ctx context.Context, ownerID string, upload Upload) (attachments.Stored, error) {
	if strings.TrimSpace(upload.FileName) == "" {
		return attachments.Stored{}, invalidField("resume", "file name is required")
	}
	stored, err := s.Attachments.Put(ctx, ownerID, upload.FileName, upload.ContentType, upload.Data)
	if err != nil {
		return attachments.Stored{}, s.uploadErr(err)
	}
	metrics.IncAttachmentsStored()
	return stored, nil
}

func (s *Service) uploadErr(err error) error {
	var rej *attachments.RejectedError
	if errors.As(err, &rej) {
		metrics.IncAttachmentsRejected()
		return &RejectedUploadError{Reason: rej.Reason, TooLarge: rej.TooLarge}
	}
	return storageErr("store attachment", err)
}

func (s *Service) replaceAttachment(ctx context.Context, app *Application, att *Attachment, now time.Time) error {
	if app.Attachment != nil {
		if err := s.Attachments.Delete(ctx, app.Attachment.Handle); err != nil {
			return storageErr("delete previous attachment", err)
		}
	}
	app.SetAttachment(att, now)
	return nil
}

// relinkAttachment points a record still referencing the deleted blob removed
// at att. If that write fails too, att's blob is discarded.
func (s *Service) relinkAttachment(ctx context.Context, ownerID, id, removed string, att *Attachment, now time.Time) {
	_, err := s.Repo.Update(ctx, ownerID, id, func(app *Application) error {
		if app.Attachment == nil || app.Attachment.Handle != removed {
			return ErrNotFound
		}
		app.SetAttachment(att, now)
		return nil
	})
	if err != nil {
		telemetry.Error("attachment.relink_failed", map[string]any{
			"application_id": id,
			"handle":         removed,
			"error":          err.Error(),
		})
		s.discardBlob(ctx, att.Handle)
		return
	}
	s.changed(ctx, ownerID)
}

func (s *Service) discardBlob(ctx context.Context, handle string) {
	if err := s.Attachments.Delete(ctx, handle); err != nil {
		telemetry.Error("attachment.discard_failed", map[string]any{
			"handle": handle,
			"error":  err.Error(),
		})
	}
}

func (s *Service) changed(ctx context.Context, ownerID string) {
	if s.OnChange != nil {
		s.OnChange.Invalidate(ctx, ownerID)
	}
}

func (s *Service) statusChanged(ctx context.Context, app Application) {
	metrics.IncStatusTransitions()
	from, _, _, _ := app.LastTransition()
	last, _ := app.History.Last()
	telemetry.Info("application.status_changed", map[string]any{
		"application_id": app.ID,
		"owner_id":       app.OwnerID,
		"from":           string(from),
		"to":             string(app.CurrentStatus),
	})
	if s.Events == nil {
		return
	}
	msg := queue.Message{
		Type:          queue.TypeStatusChanged,
		ApplicationID: app.ID,
		OwnerID:       app.OwnerID,
		From:          string(from),
		To:            string(app.CurrentStatus),
		Notes:         last.Notes,
		OccurredAt:    last.Date.Format(time.RFC3339),
		Version:       1,
	}
	if err := s.Events.Send(ctx, msg); err != nil {
		telemetry.Error("application.event_publish_failed", map[string]any{
			"application_id": app.ID,
			"error":          err.Error(),
		})
	}
}

func validatePatch(p Patch) error {
	verr := &ValidationError{}
	if p.CompanyName != nil && strings.TrimSpace(*p.CompanyName) == "" {
		verr.add("companyName", "Company name cannot be empty")
	}
	if p.JobRole != nil && strings.TrimSpace(*p.JobRole) == "" {
		verr.add("jobRole", "Job role cannot be empty")
	}
	return verr.orNil()
}

func toAttachment(st attachments.Stored, originalName string) *Attachment {
	return &Attachment{
		Handle:       st.Handle,
		OriginalName: originalName,
		ContentType:  st.ContentType,
		SizeBytes:    st.SizeBytes,
		PageCount:    st.PageCount,
	}
}
