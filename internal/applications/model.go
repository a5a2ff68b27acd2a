package applications

import (
	"strings"
	"time"
)

// Status is the stage a job application is in.
type Status string

const (
	StatusApplied   Status = "Applied"
	StatusInterview Status = "Interview"
	StatusOffer     Status = "Offer"
	StatusRejected  Status = "Rejected"
)

// Statuses lists the valid statuses in pipeline order.
var Statuses = []Status{StatusApplied, StatusInterview, StatusOffer, StatusRejected}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusInterview, StatusOffer, StatusRejected:
		return true
	default:
		return false
	}
}

// ParseStatus matches raw against the known statuses. Surrounding space is
// ignored; case is not.
func ParseStatus(raw string) (Status, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range Statuses {
		if string(s) == trimmed {
			return s, true
		}
	}
	return "", false
}

const initialEventNotes = "Application submitted"

// StatusEvent is one entry of an application's status history.
type StatusEvent struct {
	Status Status    `json:"status" bson:"status"`
	Date   time.Time `json:"date" bson:"date"`
	Notes  string    `json:"notes" bson:"notes"`
}

// Attachment references a resume blob held by the attachment store.
type Attachment struct {
	Handle       string `json:"handle" bson:"handle"`
	OriginalName string `json:"originalName" bson:"original_name"`
	ContentType  string `json:"contentType" bson:"content_type"`
	SizeBytes    int64  `json:"sizeBytes" bson:"size_bytes"`
	PageCount    int    `json:"pageCount,omitempty" bson:"page_count,omitempty"`
}

// Application is a job application owned by a single user. The status history
// travels with the record and is persisted together with it.
type Application struct {
	ID              string
	OwnerID         string
	CompanyName     string
	JobRole         string
	CurrentStatus   Status
	History         History
	Attachment      *Attachment
	JobDescription  string
	Salary          string
	Location        string
	JobURL          string
	ApplicationDate time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateInput carries the caller-settable fields of a new application.
type CreateInput struct {
	CompanyName     string
	JobRole         string
	InitialStatus   string
	JobDescription  string
	Salary          string
	Location        string
	JobURL          string
	ApplicationDate *time.Time
}

// Patch carries a partial update. Nil fields are left untouched; a non-nil
// pointer to "" clears the field.
type Patch struct {
	CompanyName    *string
	JobRole        *string
	JobDescription *string
	Salary         *string
	Location       *string
	JobURL         *string
	Status         *string
	StatusNotes    *string
}

// HasFieldChanges reports whether the patch touches any non-status field.
func (p Patch) HasFieldChanges() bool {
	return p.CompanyName != nil || p.JobRole != nil || p.JobDescription != nil ||
		p.Salary != nil || p.Location != nil || p.JobURL != nil
}

// LastTransition reports the most recent status change: the status before it,
// the status after it and when it happened. ok is false while the history holds
// only the initial event.
func (a Application) LastTransition() (from, to Status, at time.Time, ok bool) {
	n := a.History.Len()
	if n < 2 {
		return "", "", time.Time{}, false
	}
	events := a.History.events
	return events[n-2].Status, events[n-1].Status, events[n-1].Date, true
}

// clone returns a deep copy so callers never share history or attachment memory.
func (a Application) clone() Application {
	out := a
	out.History = a.History.clone()
	if a.Attachment != nil {
		att := *a.Attachment
		out.Attachment = &att
	}
	return out
}
