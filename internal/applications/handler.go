package applications

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobtracker-backend/internal/attachments"
	"jobtracker-backend/internal/shared/server/middleware"
	"jobtracker-backend/internal/shared/server/respond"
)

// resumeField is the multipart field carrying the resume file.
const resumeField = "resume"

// multipartOverhead leaves room for form fields next to the file.
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = attachments.DefaultMaxSizeBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches job application routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.POST("/jobs", h.create)
	rg.GET("/jobs/:id", h.get)
	rg.PUT("/jobs/:id", h.update)
	rg.DELETE("/jobs/:id", h.delete)
	rg.GET("/jobs/:id/resume", h.downloadResume)
	rg.DELETE("/jobs/:id/resume", h.detachResume)
}

// jobRequest is the create/update command shape shared by JSON and multipart bodies.
type jobRequest struct {
	CompanyName     *string `json:"companyName"`
	JobRole         *string `json:"jobRole"`
	CurrentStatus   *string `json:"currentStatus"`
	StatusNotes     *string `json:"statusNotes"`
	JobDescription  *string `json:"jobDescription"`
	Salary          *string `json:"salary"`
	Location        *string `json:"location"`
	JobURL          *string `json:"jobUrl"`
	ApplicationDate *string `json:"applicationDate"`

	upload *Upload
}

var formFields = []string{
	"companyName", "jobRole", "currentStatus", "statusNotes",
	"jobDescription", "salary", "location", "jobUrl", "applicationDate",
}

func (r *jobRequest) field(name string) **string {
	switch name {
	case "companyName":
		return &r.CompanyName
	case "jobRole":
		return &r.JobRole
	case "currentStatus":
		return &r.CurrentStatus
	case "statusNotes":
		return &r.StatusNotes
	case "jobDescription":
		return &r.JobDescription
	case "salary":
		return &r.Salary
	case "location":
		return &r.Location
	case "jobUrl":
		return &r.JobURL
	case "applicationDate":
		return &r.ApplicationDate
	}
	return nil
}

func (r jobRequest) createInput() (CreateInput, error) {
	in := CreateInput{
		CompanyName:    deref(r.CompanyName),
		JobRole:        deref(r.JobRole),
		InitialStatus:  deref(r.CurrentStatus),
		JobDescription: deref(r.JobDescription),
		Salary:         deref(r.Salary),
		Location:       deref(r.Location),
		JobURL:         deref(r.JobURL),
	}
	if raw := strings.TrimSpace(deref(r.ApplicationDate)); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return CreateInput{}, invalidField("applicationDate", "Invalid application date")
		}
		in.ApplicationDate = &d
	}
	return in, nil
}

func (r jobRequest) patch() Patch {
	return Patch{
		CompanyName:    r.CompanyName,
		JobRole:        r.JobRole,
		JobDescription: r.JobDescription,
		Salary:         r.Salary,
		Location:       r.Location,
		JobURL:         r.JobURL,
		Status:         r.CurrentStatus,
		StatusNotes:    r.StatusNotes,
	}
}

// bindJobRequest reads either a JSON body or a multipart form with an
// optional resume file.
func (h *Handler) bindJobRequest(c *gin.Context) (jobRequest, error) {
	var req jobRequest
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if c.Request.ContentLength == 0 {
			return req, nil
		}
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, invalidField("body", "invalid request body")
		}
		return req, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(h.MaxUploadBytes + multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, &RejectedUploadError{Reason: fmt.Sprintf("file exceeds the %d byte limit", h.MaxUploadBytes), TooLarge: true}
		}
		return req, invalidField("body", "invalid multipart form")
	}
	for _, name := range formFields {
		if v, ok := c.GetPostForm(name); ok {
			value := v
			*req.field(name) = &value
		}
	}

	fileHeader, err := c.FormFile(resumeField)
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, invalidField(resumeField, "unable to read file")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return req, invalidField(resumeField, "unable to read file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.MaxUploadBytes+1))
	if err != nil {
		return req, invalidField(resumeField, "unable to read file")
	}
	req.upload = &Upload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}
	return req, nil
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	req, err := h.bindJobRequest(c)
	if err != nil {
		WriteError(c, err, "Job not found")
		return
	}
	in, err := req.createInput()
	if err != nil {
		WriteError(c, err, "Job not found")
		return
	}

	app, err := h.Svc.Create(c.Request.Context(), userID, in, req.upload)
	if err != nil {
		WriteError(c, err, "Job not found")
		return
	}
	c.Set(middleware.ApplicationIDKey, app.ID)
	respond.JSON(c, http.StatusCreated, jobEnvelope{Message: "Job created successfully", Job: toResponse(app)})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ApplicationIDKey, id)

	app, err := h.Svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		WriteError(c, err, "Job not found")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(app))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	opts := ListOptions{}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" && !strings.EqualFold(raw, "all") {
		status, ok := ParseStatus(raw)
		if !ok {
			WriteError(c, invalidField("status", "Invalid status"), "")
			return
		}
		opts.Status = status
	}
	field, ok := ParseSortField(c.Query("sortBy"))
	if !ok {
		WriteError(c, invalidField("sortBy", "Invalid sort field"), "")
		return
	}
	opts.SortField = field
	switch strings.ToLower(strings.TrimSpace(c.Query("order"))) {
	case "", "desc":
	case "asc":
		opts.Ascending = true
	default:
		WriteError(c, invalidField("order", "order must be asc or desc"), "")
		return
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			opts.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			opts.Offset = parsed
		}
	}

	apps, err := h.Svc.List(c.Request.Context(), userID, opts)
	if err != nil {
		WriteError(c, err, "")
		return
	}
	respond.JSON(c, http.StatusOK, toResponses(apps))
}

func (h *Handler) update(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ApplicationIDKey, id)

	req, err := h.bindJobRequest(c)
	if err != nil {
		WriteError(c, err, "Job not found")
		return
	}

	app, err := h.Svc.Update(c.Request.Context(), userID, id, req.patch(), req.upload)
	if err != nil {
		WriteError(c, err, "Job not found")
		return
	}
	if req.CurrentStatus != nil {
		if from, to, at, ok := app.LastTransition(); ok && at.Equal(app.UpdatedAt) {
			c.Set(middleware.StatusTransitionKey, string(from)+"->"+string(to))
		}
	}
	respond.JSON(c, http.StatusOK, jobEnvelope{Message: "Job updated successfully", Job: toResponse(app)})
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ApplicationIDKey, id)

	if err := h.Svc.Delete(c.Request.Context(), userID, id); err != nil {
		WriteError(c, err, "Job not found")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"message": "Job deleted successfully"})
}

func (h *Handler) detachResume(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ApplicationIDKey, id)

	app, err := h.Svc.DetachResume(c.Request.Context(), userID, id)
	if err != nil {
		WriteError(c, err, "Resume not found")
		return
	}
	respond.JSON(c, http.StatusOK, jobEnvelope{Message: "Resume deleted successfully", Job: toResponse(app)})
}

func (h *Handler) downloadResume(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ApplicationIDKey, id)

	att, rc, err := h.Svc.OpenResume(c.Request.Context(), userID, id)
	if err != nil {
		WriteError(c, err, "Resume not found")
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": att.OriginalName})
	c.DataFromReader(http.StatusOK, att.SizeBytes, att.ContentType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

// WriteError maps service error kinds onto the standard error envelope.
// notFoundMsg replaces the default message of a not_found response.
func WriteError(c *gin.Context, err error, notFoundMsg string) {
	var verr *ValidationError
	var rej *RejectedUploadError
	switch {
	case errors.As(err, &verr):
		msg := "invalid input"
		if len(verr.Fields) > 0 {
			msg = verr.Fields[0].Message
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", msg, verr.Fields)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &rej):
		status := http.StatusUnsupportedMediaType
		if rej.TooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		respond.Error(c, status, "rejected_upload", rej.Reason, nil)
	case errors.Is(err, ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "not found"
		}
		respond.Error(c, http.StatusNotFound, "not_found", notFoundMsg, nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusServiceUnavailable, "storage_error", "Storage temporarily unavailable", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Server error", nil)
	}
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
