package rules

import (
	"testing"
	"time"

	"github.com/koivu/rolewarden/internal/directory"
)

const (
	grantRole   = "100"
	excludeRole = "200"
	primaryRole = "300"
)

func member(roles ...string) directory.Member {
	return directory.Member{
		ID:          "1",
		DisplayName: "pat",
		JoinedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		RoleIDs:     roles,
	}
}

func tenureInput() TenureInput {
	return TenureInput{
		GrantRoleID:    grantRole,
		ExcludeRoleIDs: []string{excludeRole},
		Threshold:      48 * time.Hour,
	}
}

func TestTenureDisqualifiersAlwaysWin(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		m    directory.Member
	}{
		{"bot", func() directory.Member { m := member(); m.Bot = true; return m }()},
		{"already holds grant role", member(grantRole)},
		{"holds exclusion role", member(excludeRole)},
	}
	for _, tc := range cases {
		in := tenureInput()
		if Tenure(tc.m, in, now) {
			t.Fatalf("%s: expected disqualified", tc.name)
		}
		in.Force = true
		if Tenure(tc.m, in, now) {
			t.Fatalf("%s: force must not override disqualifier", tc.name)
		}
	}
}

func TestTenureThreshold(t *testing.T) {
	in := tenureInput()
	joined := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	m := member()
	m.JoinedAt = joined
	if !Tenure(m, in, joined.Add(72*time.Hour)) {
		t.Fatalf("3 days past join with 2-day threshold should qualify")
	}
	if Tenure(m, in, joined.Add(24*time.Hour)) {
		t.Fatalf("1 day past join with 2-day threshold should not qualify")
	}
	if !Tenure(m, in, joined.Add(48*time.Hour)) {
		t.Fatalf("exactly at threshold should qualify")
	}
}

func TestTenureNegativeThresholdFlooredAtZero(t *testing.T) {
	in := tenureInput()
	in.Threshold = -time.Hour
	m := member()
	if !Tenure(m, in, m.JoinedAt) {
		t.Fatalf("negative threshold should behave as zero")
	}
}

func TestTenureUnresolvedJoinTime(t *testing.T) {
	in := tenureInput()
	m := member()
	m.JoinedAt = time.Time{}
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if Tenure(m, in, now) {
		t.Fatalf("missing join time should not qualify")
	}
	in.Force = true
	if !Tenure(m, in, now) {
		t.Fatalf("force should bypass the join-time requirement")
	}
}

func TestTenureMonotonicInTime(t *testing.T) {
	in := tenureInput()
	m := member()
	first := m.JoinedAt.Add(in.Threshold)
	if !Tenure(m, in, first) {
		t.Fatalf("expected qualification at threshold")
	}
	for _, later := range []time.Duration{time.Second, time.Hour, 365 * 24 * time.Hour} {
		if !Tenure(m, in, first.Add(later)) {
			t.Fatalf("qualification must not regress %v later", later)
		}
	}
}

func TestMatchPairFirstConfiguredSecondaryWins(t *testing.T) {
	secondaries := []string{"401", "402", "403"}

	m := member(primaryRole, "402", "403")
	idx, ok := MatchPair(m, primaryRole, secondaries)
	if !ok {
		t.Fatalf("expected pair match")
	}
	if idx != 1 {
		t.Fatalf("expected first held secondary by list order (index 1), got %d", idx)
	}
}

func TestMatchPairRequirements(t *testing.T) {
	secondaries := []string{"401", "402"}

	if _, ok := MatchPair(member("402"), primaryRole, secondaries); ok {
		t.Fatalf("missing primary role must not match")
	}
	if _, ok := MatchPair(member(primaryRole), primaryRole, secondaries); ok {
		t.Fatalf("no held secondary must not match")
	}
	if _, ok := MatchPair(member(primaryRole, "402"), primaryRole, nil); ok {
		t.Fatalf("empty secondary list must be inert")
	}
	bot := member(primaryRole, "402")
	bot.Bot = true
	if _, ok := MatchPair(bot, primaryRole, secondaries); ok {
		t.Fatalf("bots must not match")
	}
}
