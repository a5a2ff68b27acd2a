package attachments

import (
	"bytes"
	"errors"
	"testing"

	"jobtracker-backend/internal/attachments/attachmenttest"
)

func TestInspectAcceptsPDFAndCountsPages(t *testing.T) {
	got, err := DefaultPolicy().Inspect(attachmenttest.PDF(t, 2), "application/pdf", "resume.pdf")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got.ContentType != MimePDF {
		t.Fatalf("expected %s, got %s", MimePDF, got.ContentType)
	}
	if got.PageCount != 2 {
		t.Fatalf("expected 2 pages, got %d", got.PageCount)
	}
}

func TestInspectAcceptsDOCX(t *testing.T) {
	got, err := DefaultPolicy().Inspect(attachmenttest.DOCX(t), MimeDOCX, "resume.docx")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got.ContentType != MimeDOCX {
		t.Fatalf("expected %s, got %s", MimeDOCX, got.ContentType)
	}
}

func TestInspectAcceptsLegacyWord(t *testing.T) {
	got, err := DefaultPolicy().Inspect(attachmenttest.OLEHeader(), MimeMSWord, "resume.doc")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got.ContentType != MimeMSWord {
		t.Fatalf("expected %s, got %s", MimeMSWord, got.ContentType)
	}
}

func TestInspectRejections(t *testing.T) {
	policy := DefaultPolicy()
	tooBig := append(attachmenttest.PDF(t, 1), bytes.Repeat([]byte(" "), int(DefaultMaxSizeBytes))...)

	cases := []struct {
		name     string
		data     []byte
		declared string
		file     string
		tooLarge bool
	}{
		{name: "empty", data: nil, declared: MimePDF, file: "resume.pdf"},
		{name: "plain text", data: []byte("just some text"), declared: "text/plain", file: "resume.txt"},
		{name: "text claiming pdf", data: []byte("just some text"), declared: MimePDF, file: "resume.pdf"},
		{name: "broken pdf", data: []byte("%PDF-1.4\nnot really a pdf"), declared: MimePDF, file: "resume.pdf"},
		{name: "too large", data: tooBig, declared: MimePDF, file: "resume.pdf", tooLarge: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := policy.Inspect(tc.data, tc.declared, tc.file)
			if !errors.Is(err, ErrRejected) {
				t.Fatalf("expected ErrRejected, got %v", err)
			}
			var rej *RejectedError
			if !errors.As(err, &rej) {
				t.Fatalf("expected *RejectedError, got %T", err)
			}
			if rej.TooLarge != tc.tooLarge {
				t.Fatalf("expected TooLarge=%v, got %v", tc.tooLarge, rej.TooLarge)
			}
		})
	}
}
