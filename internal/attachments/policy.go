package attachments

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	MimePDF    = "application/pdf"
	MimeMSWord = "application/msword"
	MimeDOCX   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// DefaultMaxSizeBytes is the largest resume accepted (5 MiB).
	DefaultMaxSizeBytes int64 = 5 << 20
)

// ErrRejected matches every RejectedError.
var ErrRejected = errors.New("attachment rejected")

// RejectedError explains why an upload failed the policy.
type RejectedError struct {
	Reason   string
	TooLarge bool
}

func (e *RejectedError) Error() string { return e.Reason }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Policy decides which uploads are accepted.
type Policy struct {
	MaxSizeBytes int64
	Allowed      []string
}

// DefaultPolicy accepts PDF, DOC and DOCX files up to 5 MiB.
func DefaultPolicy() Policy {
	return Policy{
		MaxSizeBytes: DefaultMaxSizeBytes,
		Allowed:      []string{MimePDF, MimeMSWord, MimeDOCX},
	}
}

// Inspection is what the policy learned about an accepted upload.
type Inspection struct {
	ContentType string
	SizeBytes   int64
	PageCount   int
}

// Inspect checks size and content type before anything is stored. The type is
// taken from the bytes, with the declared type and file extension only used to
// disambiguate generic container formats.
func (p Policy) Inspect(data []byte, declaredType, fileName string) (Inspection, error) {
	max := p.MaxSizeBytes
	if max <= 0 {
		max = DefaultMaxSizeBytes
	}
	size := int64(len(data))
	if size == 0 {
		return Inspection{}, &RejectedError{Reason: "file is empty"}
	}
	if size > max {
		return Inspection{}, &RejectedError{
			Reason:   fmt.Sprintf("file exceeds the %d byte limit", max),
			TooLarge: true,
		}
	}

	contentType := p.classify(data, declaredType, fileName)
	if contentType == "" {
		return Inspection{}, &RejectedError{Reason: "Invalid file type. Only PDF, DOC, and DOCX files are allowed."}
	}

	out := Inspection{ContentType: contentType, SizeBytes: size}
	switch contentType {
	case MimePDF:
		pages, err := pdfPageCount(data)
		if err != nil {
			return Inspection{}, &RejectedError{Reason: "file is not a readable PDF"}
		}
		out.PageCount = pages
	case MimeDOCX:
		if !hasDocxBody(data) {
			return Inspection{}, &RejectedError{Reason: "file is not a valid DOCX document"}
		}
	}
	return out, nil
}

func (p Policy) allowed(contentType string) bool {
	for _, a := range p.Allowed {
		if a == contentType {
			return true
		}
	}
	return false
}

func (p Policy) classify(data []byte, declaredType, fileName string) string {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if p.allowed(m.String()) {
			return m.String()
		}
	}

	declared := normalizeDeclared(declaredType)
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case detected.Is("application/zip") && (declared == MimeDOCX || ext == ".docx"):
		if p.allowed(MimeDOCX) {
			return MimeDOCX
		}
	case detected.Is("application/x-ole-storage") && (declared == MimeMSWord || ext == ".doc"):
		if p.allowed(MimeMSWord) {
			return MimeMSWord
		}
	}
	return ""
}

func normalizeDeclared(raw string) string {
	base, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func pdfPageCount(data []byte) (pages int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

func hasDocxBody(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
