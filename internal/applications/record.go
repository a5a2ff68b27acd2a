package applications

import (
	"fmt"
	"strings"
	"time"
)

// NewApplication validates input and builds a record whose history holds the
// synthesized "Application submitted" event.
func NewApplication(id, ownerID string, in CreateInput, now time.Time) (Application, error) {
	verr := &ValidationError{}

	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		verr.add("companyName", "Company name is required")
	}
	role := strings.TrimSpace(in.JobRole)
	if role == "" {
		verr.add("jobRole", "Job role is required")
	}

	status := StatusApplied
	if strings.TrimSpace(in.InitialStatus) != "" {
		parsed, ok := ParseStatus(in.InitialStatus)
		if !ok {
			verr.add("currentStatus", "Invalid status")
		}
		status = parsed
	}
	if strings.TrimSpace(ownerID) == "" {
		verr.add("ownerId", "owner is required")
	}
	if err := verr.orNil(); err != nil {
		return Application{}, err
	}

	now = now.UTC()
	applied := now
	if in.ApplicationDate != nil && !in.ApplicationDate.IsZero() {
		applied = in.ApplicationDate.UTC()
	}

	app := Application{
		ID:              id,
		OwnerID:         ownerID,
		CompanyName:     company,
		JobRole:         role,
		CurrentStatus:   status,
		JobDescription:  in.JobDescription,
		Salary:          in.Salary,
		Location:        in.Location,
		JobURL:          in.JobURL,
		ApplicationDate: applied,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	app.History.Append(StatusEvent{
		Status: status,
		Date:   applied,
		Notes:  initialEventNotes,
	})
	return app, nil
}

// ApplyPatch copies the non-status fields present in p onto the record.
// Company name and job role may not be cleared.
func (a *Application) ApplyPatch(p Patch, now time.Time) error {
	verr := &ValidationError{}
	var company, role string
	if p.CompanyName != nil {
		company = strings.TrimSpace(*p.CompanyName)
		if company == "" {
			verr.add("companyName", "Company name cannot be empty")
		}
	}
	if p.JobRole != nil {
		role = strings.TrimSpace(*p.JobRole)
		if role == "" {
			verr.add("jobRole", "Job role cannot be empty")
		}
	}
	if err := verr.orNil(); err != nil {
		return err
	}
	if !p.HasFieldChanges() {
		return nil
	}

	if p.CompanyName != nil {
		a.CompanyName = company
	}
	if p.JobRole != nil {
		a.JobRole = role
	}
	if p.JobDescription != nil {
		a.JobDescription = *p.JobDescription
	}
	if p.Salary != nil {
		a.Salary = *p.Salary
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.JobURL != nil {
		a.JobURL = *p.JobURL
	}
	a.UpdatedAt = now.UTC()
	return nil
}

// TransitionStatus appends a history event when next differs from the current
// status. Moving to the current status is a no-op and reports changed=false.
func (a *Application) TransitionStatus(next Status, notes *string, now time.Time) (bool, error) {
	if !next.Valid() {
		return false, invalidField("currentStatus", "Invalid status")
	}
	if next == a.CurrentStatus {
		return false, nil
	}

	text := fmt.Sprintf("Status changed to %s", next)
	if notes != nil && strings.TrimSpace(*notes) != "" {
		text = *notes
	}
	now = now.UTC()
	a.History.Append(StatusEvent{Status: next, Date: now, Notes: text})
	a.CurrentStatus = next
	a.UpdatedAt = now
	a.History.mustMatch(a.CurrentStatus)
	return true, nil
}

// SetAttachment installs att as the record's attachment and returns the one it
// replaced. The caller owns deleting the replaced blob.
func (a *Application) SetAttachment(att *Attachment, now time.Time) *Attachment {
	prev := a.Attachment
	a.Attachment = att
	a.UpdatedAt = now.UTC()
	return prev
}
