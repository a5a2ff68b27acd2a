package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"jobtracker-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.Configure(&buf, "info")
	t.Cleanup(func() { telemetry.Configure(os.Stdout, "info") })

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		c.Set(userIDKey, "user-1")
		c.Next()
	}, Logging())
	router.PUT("/api/v1/jobs/:id", func(c *gin.Context) {
		c.Set(ApplicationIDKey, c.Param("id"))
		c.Set(StatusTransitionKey, "Applied->Interview")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/jobs/app-1", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "user_id", "application_id", "duration_ms", "status", "status_transition", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["user_id"] != "user-1" {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if payload["application_id"] != "app-1" {
		t.Fatalf("unexpected application_id: %v", payload["application_id"])
	}
	if payload["status_transition"] != "Applied->Interview" {
		t.Fatalf("unexpected status_transition: %v", payload["status_transition"])
	}
	if payload["route"] != "/api/v1/jobs/:id" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}

func TestLoggingUsesWarnForClientErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.Configure(&buf, "info")
	t.Cleanup(func() { telemetry.Configure(os.Stdout, "info") })

	router := gin.New()
	router.Use(Logging())
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if payload["level"] != "warning" {
		t.Fatalf("expected warning level, got %v", payload["level"])
	}
}
