package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	applicationsCreatedTotal atomic.Uint64
	applicationsDeletedTotal atomic.Uint64
	statusTransitionsTotal   atomic.Uint64
	attachmentsStoredTotal   atomic.Uint64
	attachmentsRejectedTotal atomic.Uint64
	statsCacheHitsTotal      atomic.Uint64
	statsCacheMissesTotal    atomic.Uint64
	eventsReceivedTotal      atomic.Uint64
	eventsProcessedTotal     atomic.Uint64
	eventsFailedTotal        atomic.Uint64
	eventsDroppedTotal       atomic.Uint64

	requestDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000})

	requestsMu    sync.Mutex
	requestsTotal = map[string]uint64{}
)

// IncApplicationsCreated increments the created counter.
func IncApplicationsCreated() {
	applicationsCreatedTotal.Add(1)
}

// IncApplicationsDeleted increments the deleted counter.
func IncApplicationsDeleted() {
	applicationsDeletedTotal.Add(1)
}

// IncStatusTransitions counts a status change appended to a history.
func IncStatusTransitions() {
	statusTransitionsTotal.Add(1)
}

// IncAttachmentsStored increments the stored attachments counter.
func IncAttachmentsStored() {
	attachmentsStoredTotal.Add(1)
}

// IncAttachmentsRejected increments the rejected uploads counter.
func IncAttachmentsRejected() {
	attachmentsRejectedTotal.Add(1)
}

// IncStatsCacheHit counts an overview served from cache.
func IncStatsCacheHit() {
	statsCacheHitsTotal.Add(1)
}

// IncStatsCacheMiss counts an overview computed from the store.
func IncStatsCacheMiss() {
	statsCacheMissesTotal.Add(1)
}

// IncEventsReceived counts a queue message picked up by the worker.
func IncEventsReceived() {
	eventsReceivedTotal.Add(1)
}

// IncEventsProcessed counts a queue message handled and deleted.
func IncEventsProcessed() {
	eventsProcessedTotal.Add(1)
}

// IncEventsFailed counts a queue message left for redelivery.
func IncEventsFailed() {
	eventsFailedTotal.Add(1)
}

// IncEventsDropped counts an unrecoverable queue message deleted without processing.
func IncEventsDropped() {
	eventsDroppedTotal.Add(1)
}

// ObserveRequestDurationMs records an HTTP request duration in milliseconds.
func ObserveRequestDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	requestDuration.Observe(value)
}

func incRequests(status int) {
	class := strconv.Itoa(status/100) + "xx"
	requestsMu.Lock()
	requestsTotal[class]++
	requestsMu.Unlock()
}

// Middleware records request counts and latency.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ObserveRequestDurationMs(float64(time.Since(start).Microseconds()) / 1000)
		incRequests(c.Writer.Status())
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "applications_created_total", "Total job applications created", applicationsCreatedTotal.Load())
	writeCounter(&buf, "applications_deleted_total", "Total job applications deleted", applicationsDeletedTotal.Load())
	writeCounter(&buf, "application_status_transitions_total", "Total status changes appended to histories", statusTransitionsTotal.Load())
	writeCounter(&buf, "attachments_stored_total", "Total resume attachments stored", attachmentsStoredTotal.Load())
	writeCounter(&buf, "attachments_rejected_total", "Total resume uploads rejected by policy", attachmentsRejectedTotal.Load())
	writeCounter(&buf, "stats_cache_hits_total", "Stats overviews served from cache", statsCacheHitsTotal.Load())
	writeCounter(&buf, "stats_cache_misses_total", "Stats overviews computed from the store", statsCacheMissesTotal.Load())
	writeCounter(&buf, "worker_events_received_total", "Queue events received by the worker", eventsReceivedTotal.Load())
	writeCounter(&buf, "worker_events_processed_total", "Queue events processed", eventsProcessedTotal.Load())
	writeCounter(&buf, "worker_events_failed_total", "Queue events left for redelivery", eventsFailedTotal.Load())
	writeCounter(&buf, "worker_events_dropped_total", "Unrecoverable queue events deleted", eventsDroppedTotal.Load())
	writeRequests(&buf)
	writeHistogram(&buf, "http_request_duration_ms", "HTTP request duration in milliseconds", requestDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket that holds it; rendering accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeRequests(buf *bytes.Buffer) {
	requestsMu.Lock()
	classes := make([]string, 0, len(requestsTotal))
	for class := range requestsTotal {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	values := make([]uint64, len(classes))
	for i, class := range classes {
		values[i] = requestsTotal[class]
	}
	requestsMu.Unlock()

	fmt.Fprintf(buf, "# HELP http_requests_total HTTP requests by status class\n")
	fmt.Fprintf(buf, "# TYPE http_requests_total counter\n")
	for i, class := range classes {
		fmt.Fprintf(buf, "http_requests_total{code=%q} %d\n", class, values[i])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
