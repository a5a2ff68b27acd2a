package health

import (
	"context"
	"sort"
	"time"
)

const defaultTimeout = 2 * time.Second

// Check probes one dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Report is the payload of GET /health.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	checks  []Check
	timeout time.Duration
}

// NewService constructs a health service over the configured dependencies.
func NewService(checks ...Check) *Service {
	return &Service{checks: checks, timeout: defaultTimeout}
}

// Names lists the registered checks in order.
func (s *Service) Names() []string {
	out := make([]string, 0, len(s.checks))
	for _, c := range s.checks {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

// Status runs every check with a shared timeout. OK is false when any fails.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true}
	if len(s.checks) == 0 {
		return report
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report.Checks = make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			report.OK = false
			report.Checks[c.Name] = "error: " + err.Error()
			continue
		}
		report.Checks[c.Name] = "ok"
	}
	return report
}
