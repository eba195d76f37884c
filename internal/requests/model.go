// Package requests reads and prunes the intake submissions that drive
// appointment events. Rows are written by the external intake form and are
// read-only here apart from retention pruning.
package requests

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvillareal/intake-scheduler/internal/dates"
)

// Request is one intake submission.
type Request struct {
	ID          uuid.UUID
	CategoryID  string
	LastName    string
	FirstName   string
	Purok       string
	Barangay    string
	Date        dates.Date
	SubmittedAt time.Time
}

// Identity is the deduplication key: the requester's name and location.
// Category and date are deliberately excluded so a resubmission under a
// different category supersedes the earlier one.
func (r Request) Identity() string {
	parts := []string{r.LastName, r.FirstName, r.Purok, r.Barangay}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// DisplayName renders "Last, First" for event titles.
func (r Request) DisplayName() string {
	return strings.TrimSpace(r.LastName) + ", " + strings.TrimSpace(r.FirstName)
}

// Dedupe collapses requests sharing an identity, keeping the most recently
// submitted one. Order of the result follows first appearance of each
// surviving identity.
func Dedupe(rows []Request) []Request {
	latest := make(map[string]Request, len(rows))
	var order []string
	for _, r := range rows {
		key := r.Identity()
		prev, seen := latest[key]
		if !seen {
			order = append(order, key)
			latest[key] = r
			continue
		}
		if r.SubmittedAt.After(prev.SubmittedAt) {
			latest[key] = r
		}
	}
	out := make([]Request, 0, len(order))
	for _, key := range order {
		out = append(out, latest[key])
	}
	return out
}
