package applications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"jobtracker-backend/internal/attachments"
	"jobtracker-backend/internal/attachments/attachmenttest"
	"jobtracker-backend/internal/queue"
	"jobtracker-backend/internal/shared/storage/object/memory"
	"jobtracker-backend/internal/shared/telemetry"
)

type recordingListener struct {
	owners []string
}

func (l *recordingListener) Invalidate(ctx context.Context, ownerID string) {
	l.owners = append(l.owners, ownerID)
}

// failingObjects fails every Delete with deleteErr once it is set.
type failingObjects struct {
	*memory.Store
	deleteErr error
}

func (s *failingObjects) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.Delete(ctx, key)
}

type serviceFixture struct {
	svc      *Service
	repo     *MemoryRepo
	objects  *failingObjects
	events   *queue.MemoryClient
	listener *recordingListener
	clock    time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	telemetry.Configure(io.Discard, "error")

	f := &serviceFixture{
		repo:     NewMemoryRepo(),
		objects:  &failingObjects{Store: memory.New()},
		events:   &queue.MemoryClient{},
		listener: &recordingListener{},
		clock:    t0,
	}
	seq := 0
	f.svc = &Service{
		Repo:        f.repo,
		Attachments: attachments.NewStore(f.objects),
		Events:      f.events,
		OnChange:    f.listener,
		Now:         func() time.Time { return f.clock },
		NewID: func() string {
			seq++
			return fmt.Sprintf("app-%d", seq)
		},
	}
	return f
}

func (f *serviceFixture) tick() {
	f.clock = f.clock.Add(time.Minute)
}

func pdfUpload(t *testing.T, name string) *Upload {
	return &Upload{FileName: name, ContentType: attachments.MimePDF, Data: attachmenttest.PDF(t, 2)}
}

func (f *serviceFixture) create(t *testing.T, owner, status string, upload *Upload) Application {
	t.Helper()
	app, err := f.svc.Create(context.Background(), owner, CreateInput{
		CompanyName:   "Acme",
		JobRole:       "Engineer",
		InitialStatus: status,
	}, upload)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return app
}

func TestServiceCreateAndTransition(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	app := f.create(t, "owner-a", "Applied", nil)
	if app.History.Len() != 1 || app.CurrentStatus != StatusApplied {
		t.Fatalf("unexpected created record %+v", app)
	}

	f.tick()
	updated, err := f.svc.TransitionStatus(ctx, "owner-a", app.ID, "Interview", strPtr("Phone screen scheduled"))
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if updated.History.Len() != 2 || updated.CurrentStatus != StatusInterview {
		t.Fatalf("unexpected record %+v", updated)
	}

	sent := f.events.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one event, got %d", len(sent))
	}
	if sent[0].From != "Applied" || sent[0].To != "Interview" || sent[0].Notes != "Phone screen scheduled" {
		t.Fatalf("unexpected event %+v", sent[0])
	}
	if len(f.listener.owners) != 2 {
		t.Fatalf("expected stats invalidated on create and update, got %v", f.listener.owners)
	}
}

func TestServiceNoopTransitionLeavesRecordAndPublishesNothing(t *testing.T) {
	f := newServiceFixture(t)
	app := f.create(t, "owner-a", "Interview", nil)

	f.tick()
	got, err := f.svc.TransitionStatus(context.Background(), "owner-a", app.ID, "Interview", nil)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if got.History.Len() != 1 || !got.UpdatedAt.Equal(app.UpdatedAt) {
		t.Fatalf("no-op transition changed record: len=%d updatedAt=%v", got.History.Len(), got.UpdatedAt)
	}
	if len(f.events.Sent()) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestServiceRejectsInvalidStatusBeforeTouchingStore(t *testing.T) {
	f := newServiceFixture(t)
	app := f.create(t, "owner-a", "Applied", nil)

	_, err := f.svc.Update(context.Background(), "owner-a", app.ID, Patch{Status: strPtr("Hired")}, pdfUpload(t, "cv.pdf"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.objects.Len() != 0 {
		t.Fatalf("expected no blob written, got %d", f.objects.Len())
	}
}

func TestServiceOwnerIsolation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", nil)

	if _, err := f.svc.Get(ctx, "owner-b", app.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.TransitionStatus(ctx, "owner-b", app.ID, "Offer", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := f.svc.Delete(ctx, "owner-b", app.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestServiceReplacingResumeDeletesPreviousBlob(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "first.pdf"))
	if app.Attachment == nil {
		t.Fatalf("expected attachment on create")
	}
	h1 := app.Attachment.Handle
	if app.Attachment.PageCount != 2 || app.Attachment.OriginalName != "first.pdf" {
		t.Fatalf("unexpected attachment %+v", app.Attachment)
	}

	f.tick()
	updated, err := f.svc.AttachResume(ctx, "owner-a", app.ID, *pdfUpload(t, "second.pdf"))
	if err != nil {
		t.Fatalf("AttachResume: %v", err)
	}
	h2 := updated.Attachment.Handle
	if h2 == h1 {
		t.Fatalf("expected a new handle")
	}
	if f.objects.Has(h1) {
		t.Fatalf("previous blob %s still stored", h1)
	}
	if !f.objects.Has(h2) || f.objects.Len() != 1 {
		t.Fatalf("expected only the new blob, have %d", f.objects.Len())
	}
}

func TestServiceOversizedUploadLeavesRecordUnchanged(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "cv.pdf"))

	big := append(attachmenttest.PDF(t, 1), bytes.Repeat([]byte(" "), 6<<20)...)
	f.tick()
	_, err := f.svc.Update(ctx, "owner-a", app.ID, Patch{Salary: strPtr("100k")}, &Upload{
		FileName:    "huge.pdf",
		ContentType: attachments.MimePDF,
		Data:        big,
	})
	var rej *RejectedUploadError
	if !errors.As(err, &rej) || !rej.TooLarge {
		t.Fatalf("expected too-large RejectedUploadError, got %v", err)
	}

	got, _ := f.svc.Get(ctx, "owner-a", app.ID)
	if got.Salary != "" || !got.UpdatedAt.Equal(app.UpdatedAt) || got.Attachment.Handle != app.Attachment.Handle {
		t.Fatalf("record changed after rejected upload: %+v", got)
	}
	if f.objects.Len() != 1 {
		t.Fatalf("expected original blob only, got %d", f.objects.Len())
	}
}

func TestServiceRejectsWrongFileType(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.Create(context.Background(), "owner-a", CreateInput{CompanyName: "Acme", JobRole: "Engineer"}, &Upload{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Data:        []byte("hello"),
	})
	if !errors.Is(err, ErrRejectedUpload) {
		t.Fatalf("expected ErrRejectedUpload, got %v", err)
	}
	list, _ := f.svc.List(context.Background(), "owner-a", ListOptions{})
	if len(list) != 0 {
		t.Fatalf("expected no record created")
	}
}

func TestServiceFailedOldBlobDeleteKeepsOldAttachment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "first.pdf"))
	h1 := app.Attachment.Handle

	f.objects.deleteErr = errors.New("bucket unavailable")
	_, err := f.svc.AttachResume(ctx, "owner-a", app.ID, *pdfUpload(t, "second.pdf"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	got, _ := f.svc.Get(ctx, "owner-a", app.ID)
	if got.Attachment == nil || got.Attachment.Handle != h1 {
		t.Fatalf("expected old attachment to remain, got %+v", got.Attachment)
	}
	if !f.objects.Has(h1) {
		t.Fatalf("old blob should still be stored")
	}
}

// commitFailingRepo runs the mutation but fails the write for the next
// failures calls to Update.
type commitFailingRepo struct {
	*MemoryRepo
	failures int
}

func (r *commitFailingRepo) Update(ctx context.Context, ownerID, id string, fn MutateFunc) (Application, error) {
	if r.failures == 0 {
		return r.MemoryRepo.Update(ctx, ownerID, id, fn)
	}
	r.failures--
	app, err := r.MemoryRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return Application{}, err
	}
	if err := fn(&app); err != nil {
		return Application{}, err
	}
	return Application{}, storageErr("update application", errors.New("connection reset"))
}

func TestServiceFailedWriteAfterOldBlobDeleteRelinksNewBlob(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "first.pdf"))
	h1 := app.Attachment.Handle

	f.svc.Repo = &commitFailingRepo{MemoryRepo: f.repo, failures: 1}
	_, err := f.svc.AttachResume(ctx, "owner-a", app.ID, *pdfUpload(t, "second.pdf"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	got, _ := f.repo.GetByID(ctx, "owner-a", app.ID)
	if got.Attachment == nil || got.Attachment.Handle == h1 {
		t.Fatalf("expected record relinked to the new blob, got %+v", got.Attachment)
	}
	if got.Attachment.OriginalName != "second.pdf" {
		t.Fatalf("unexpected attachment %+v", got.Attachment)
	}
	if f.objects.Has(h1) || !f.objects.Has(got.Attachment.Handle) || f.objects.Len() != 1 {
		t.Fatalf("expected only the new blob stored, have %d", f.objects.Len())
	}
}

func TestServiceFailedRelinkDiscardsNewBlob(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "first.pdf"))

	f.svc.Repo = &commitFailingRepo{MemoryRepo: f.repo, failures: 2}
	if _, err := f.svc.AttachResume(ctx, "owner-a", app.ID, *pdfUpload(t, "second.pdf")); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if f.objects.Len() != 0 {
		t.Fatalf("expected new blob discarded, have %d", f.objects.Len())
	}
}

func TestServiceDeleteRemovesBlobThenRecord(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "cv.pdf"))
	h1 := app.Attachment.Handle

	if err := f.svc.Delete(ctx, "owner-a", app.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.objects.Has(h1) {
		t.Fatalf("blob survived record deletion")
	}
	if _, err := f.svc.Get(ctx, "owner-a", app.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceDeleteAbortsWhenBlobDeleteFails(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "cv.pdf"))

	f.objects.deleteErr = errors.New("bucket unavailable")
	if err := f.svc.Delete(ctx, "owner-a", app.ID); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if _, err := f.svc.Get(ctx, "owner-a", app.ID); err != nil {
		t.Fatalf("record should remain, got %v", err)
	}
}

func TestServiceDetachAndOpenResume(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.create(t, "owner-a", "Applied", pdfUpload(t, "cv.pdf"))

	att, rc, err := f.svc.OpenResume(ctx, "owner-a", app.ID)
	if err != nil {
		t.Fatalf("OpenResume: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if int64(len(data)) != att.SizeBytes || att.ContentType != attachments.MimePDF {
		t.Fatalf("unexpected resume %+v (%d bytes)", att, len(data))
	}

	f.tick()
	detached, err := f.svc.DetachResume(ctx, "owner-a", app.ID)
	if err != nil {
		t.Fatalf("DetachResume: %v", err)
	}
	if detached.Attachment != nil || f.objects.Len() != 0 {
		t.Fatalf("expected attachment and blob gone")
	}
	if _, err := f.svc.DetachResume(ctx, "owner-a", app.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound detaching twice, got %v", err)
	}
	if _, _, err := f.svc.OpenResume(ctx, "owner-a", app.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound opening missing resume, got %v", err)
	}
}

func TestServicePublishFailureDoesNotFailCommand(t *testing.T) {
	f := newServiceFixture(t)
	f.events.Err = errors.New("queue down")
	app := f.create(t, "owner-a", "Applied", nil)

	f.tick()
	got, err := f.svc.TransitionStatus(context.Background(), "owner-a", app.ID, "Rejected", nil)
	if err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
	if got.CurrentStatus != StatusRejected {
		t.Fatalf("unexpected status %q", got.CurrentStatus)
	}
}

func TestServiceListValidatesOwnerAndStatus(t *testing.T) {
	f := newServiceFixture(t)
	if _, err := f.svc.List(context.Background(), "", ListOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing owner, got %v", err)
	}
	if _, err := f.svc.List(context.Background(), "owner-a", ListOptions{Status: "Hired"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad status, got %v", err)
	}
}
