// Package rules holds the pure eligibility predicates of the governance job.
// Nothing here performs I/O; every decision is a function of one member
// snapshot, the static rule configuration, and the supplied clock reading.
package rules

import (
	"time"

	"github.com/koivu/rolewarden/internal/directory"
)

// TenureInput is the static configuration of the tenure grant rule.
type TenureInput struct {
	GrantRoleID    string
	ExcludeRoleIDs []string
	Threshold      time.Duration
	Force          bool
}

// Tenure reports whether the member qualifies for the tenure grant at "now".
// Disqualifiers (bot, role already held, exclusion role) always win over the
// force flag and the elapsed-time check. Thresholds below zero are treated as
// zero. Members with an unresolved join time never qualify unless forced.
func Tenure(m directory.Member, in TenureInput, now time.Time) bool {
	if m.Bot {
		return false
	}
	if m.HasRole(in.GrantRoleID) {
		return false
	}
	for _, id := range in.ExcludeRoleIDs {
		if m.HasRole(id) {
			return false
		}
	}
	if in.Force {
		return true
	}
	if !m.Joined() {
		return false
	}
	threshold := in.Threshold
	if threshold < 0 {
		threshold = 0
	}
	return now.Sub(m.JoinedAt) >= threshold
}

// MatchPair evaluates the paired-role resolution rule: the member must hold
// the primary role plus at least one of the configured secondary roles. When
// several secondaries are held, the first by configured list order wins; the
// returned index selects the notification template. ok is false when the
// member is a bot, the secondary list is empty, or no pairing matches.
func MatchPair(m directory.Member, primaryID string, secondaryIDs []string) (int, bool) {
	if m.Bot || len(secondaryIDs) == 0 {
		return 0, false
	}
	if !m.HasRole(primaryID) {
		return 0, false
	}
	for i, id := range secondaryIDs {
		if m.HasRole(id) {
			return i, true
		}
	}
	return 0, false
}
