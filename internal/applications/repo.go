package applications

import (
	"context"
	"sort"
	"strings"
)

// SortField names a column applications can be ordered by.
type SortField string

const (
	SortCreatedAt       SortField = "createdAt"
	SortUpdatedAt       SortField = "updatedAt"
	SortApplicationDate SortField = "applicationDate"
	SortCompanyName     SortField = "companyName"
	SortJobRole         SortField = "jobRole"
	SortCurrentStatus   SortField = "currentStatus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ParseSortField validates a caller-supplied sort key. Empty means createdAt.
func ParseSortField(raw string) (SortField, bool) {
	switch SortField(strings.TrimSpace(raw)) {
	case "", SortCreatedAt:
		return SortCreatedAt, true
	case SortUpdatedAt:
		return SortUpdatedAt, true
	case SortApplicationDate:
		return SortApplicationDate, true
	case SortCompanyName:
		return SortCompanyName, true
	case SortJobRole:
		return SortJobRole, true
	case SortCurrentStatus:
		return SortCurrentStatus, true
	default:
		return "", false
	}
}

// ListOptions filters and orders a listing. The zero value lists every
// status newest-first.
type ListOptions struct {
	Status    Status
	SortField SortField
	Ascending bool
	Limit     int
	Offset    int
}

func (o ListOptions) normalized() ListOptions {
	if o.SortField == "" {
		o.SortField = SortCreatedAt
	}
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// StatusCounts is a per-owner breakdown of applications by current status.
type StatusCounts struct {
	Total    int
	ByStatus map[Status]int
}

// MutateFunc edits a loaded application in place. Returning an error aborts
// the update and nothing is persisted.
type MutateFunc func(app *Application) error

// Repo persists applications. Every method is scoped to an owner; records of
// other owners are reported as ErrNotFound.
type Repo interface {
	Create(ctx context.Context, app Application) error
	GetByID(ctx context.Context, ownerID, id string) (Application, error)
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]Application, error)
	// Update loads the record, applies fn and writes the result as one atomic unit.
	Update(ctx context.Context, ownerID, id string, fn MutateFunc) (Application, error)
	Delete(ctx context.Context, ownerID, id string) error
	CountByStatus(ctx context.Context, ownerID string) (StatusCounts, error)
}

// sortApplications orders apps in place. Ties fall back to id so listings are stable.
func sortApplications(apps []Application, field SortField, ascending bool) {
	less := func(a, b Application) int {
		switch field {
		case SortUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortApplicationDate:
			return a.ApplicationDate.Compare(b.ApplicationDate)
		case SortCompanyName:
			return strings.Compare(strings.ToLower(a.CompanyName), strings.ToLower(b.CompanyName))
		case SortJobRole:
			return strings.Compare(strings.ToLower(a.JobRole), strings.ToLower(b.JobRole))
		case SortCurrentStatus:
			return strings.Compare(string(a.CurrentStatus), string(b.CurrentStatus))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(apps, func(i, j int) bool {
		c := less(apps[i], apps[j])
		if c == 0 {
			c = strings.Compare(apps[i].ID, apps[j].ID)
		}
		if ascending {
			return c < 0
		}
		return c > 0
	})
}
