package applications

import "time"

// StatusEventResponse is one history entry as returned to clients.
type StatusEventResponse struct {
	Status string    `json:"status"`
	Date   time.Time `json:"date"`
	Notes  string    `json:"notes"`
}

// ResumeResponse describes an attached resume without exposing its storage handle.
type ResumeResponse struct {
	OriginalName string `json:"originalName"`
	ContentType  string `json:"contentType"`
	SizeBytes    int64  `json:"sizeBytes"`
	PageCount    int    `json:"pageCount,omitempty"`
	DownloadURL  string `json:"downloadUrl"`
}

// JobResponse is the outward-facing representation of an application.
type JobResponse struct {
	ID              string                `json:"id"`
	CompanyName     string                `json:"companyName"`
	JobRole         string                `json:"jobRole"`
	CurrentStatus   string                `json:"currentStatus"`
	StatusHistory   []StatusEventResponse `json:"statusHistory"`
	Resume          *ResumeResponse       `json:"resume"`
	JobDescription  string                `json:"jobDescription"`
	Salary          string                `json:"salary"`
	Location        string                `json:"location"`
	JobURL          string                `json:"jobUrl"`
	ApplicationDate time.Time             `json:"applicationDate"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type jobEnvelope struct {
	Message string      `json:"message"`
	Job     JobResponse `json:"job"`
}

func toResponse(app Application) JobResponse {
	events := app.History.Events()
	history := make([]StatusEventResponse, 0, len(events))
	for _, ev := range events {
		history = append(history, StatusEventResponse{
			Status: string(ev.Status),
			Date:   ev.Date,
			Notes:  ev.Notes,
		})
	}
	out := JobResponse{
		ID:              app.ID,
		CompanyName:     app.CompanyName,
		JobRole:         app.JobRole,
		CurrentStatus:   string(app.CurrentStatus),
		StatusHistory:   history,
		JobDescription:  app.JobDescription,
		Salary:          app.Salary,
		Location:        app.Location,
		JobURL:          app.JobURL,
		ApplicationDate: app.ApplicationDate,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
	if app.Attachment != nil {
		out.Resume = &ResumeResponse{
			OriginalName: app.Attachment.OriginalName,
			ContentType:  app.Attachment.ContentType,
			SizeBytes:    app.Attachment.SizeBytes,
			PageCount:    app.Attachment.PageCount,
			DownloadURL:  "/api/v1/jobs/" + app.ID + "/resume",
		}
	}
	return out
}

func toResponses(apps []Application) []JobResponse {
	out := make([]JobResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toResponse(app))
	}
	return out
}
