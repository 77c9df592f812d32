// Package engine drives one governance run: a pair-resolution phase followed
// by a tenure-grant phase, each evaluating the member population sequentially
// and applying at most one mutation per member per rule family.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/koivu/rolewarden/internal/config"
	"github.com/koivu/rolewarden/internal/directory"
	"github.com/koivu/rolewarden/internal/notify"
	"github.com/koivu/rolewarden/internal/rules"
)

// Options tunes run pacing and the clock. Pacing delays keep the job inside
// the platform's request-rate ceiling; they are tunable, not load-bearing.
type Options struct {
	// VisitPause is the delay after each member visited in the tenure scan.
	VisitPause time.Duration
	// MutatePause is the delay after each pair-phase mutation.
	MutatePause time.Duration
	// Now supplies the clock for tenure evaluation; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the runtime pacing defaults.
func DefaultOptions() Options {
	return Options{
		VisitPause:  50 * time.Millisecond,
		MutatePause: 150 * time.Millisecond,
		Now:         time.Now,
	}
}

// Orchestrator runs the two rule phases over the member directory.
type Orchestrator struct {
	dir  directory.Directory
	dsp  *notify.Dispatcher
	cfg  config.Rules
	opts Options
	log  zerolog.Logger
}

func New(dir directory.Directory, dsp *notify.Dispatcher, cfg config.Rules, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{dir: dir, dsp: dsp, cfg: cfg, opts: opts, log: log}
}

// Run executes one full governance run and returns the accumulated stats.
// The returned error is run-fatal: the server or the grant role could not be
// resolved, or the member listing broke mid-scan. Per-member failures are
// logged and never surface here.
func (o *Orchestrator) Run(ctx context.Context) (Stats, error) {
	server, err := o.dir.ResolveServer(ctx, o.cfg.ServerID)
	if err != nil {
		return Stats{}, fmt.Errorf("resolve server %s: %w", o.cfg.ServerID, err)
	}

	mode := "full scan"
	if o.cfg.Targeted() {
		mode = "targeted"
	}
	o.log.Info().
		Str("server", server.Name).
		Str("mode", mode).
		Bool("dry_run", o.cfg.DryRun).
		Msg("starting run")

	exec := NewExecutor(o.dir, o.dsp, o.cfg, server, o.log)
	var stats Stats
	o.runPairPhase(ctx, server, exec, &stats)
	if err := o.runTenurePhase(ctx, server, exec, &stats); err != nil {
		return stats, err
	}

	o.log.Info().
		Int("checked", stats.Checked).
		Int("tenure_granted", stats.TenureGranted).
		Int("pair_resolved", stats.PairResolved).
		Msg("run complete")
	return stats, nil
}

// runPairPhase removes the primary pair role from members who also hold a
// configured secondary role. Failures here are at most phase-fatal: an
// unresolvable primary role skips the phase and the run continues.
func (o *Orchestrator) runPairPhase(ctx context.Context, server directory.Server, exec *Executor, stats *Stats) {
	if !o.cfg.PairConfigured() {
		o.log.Debug().Msg("pair rule not configured; skipping pair phase")
		return
	}

	primary, err := o.dir.ResolveRole(ctx, server.ID, o.cfg.PairPrimaryRoleID)
	if err != nil {
		o.log.Warn().
			Err(err).
			Str("role_id", o.cfg.PairPrimaryRoleID).
			Msg("primary pair role unresolvable; skipping pair phase")
		return
	}

	// Unresolvable secondaries are dropped; templates stay aligned with the
	// surviving list so the tie-break index selects the right message.
	secondaryIDs := make([]string, 0, len(o.cfg.PairRoles))
	templates := make([]string, 0, len(o.cfg.PairRoles))
	for _, p := range o.cfg.PairRoles {
		if _, err := o.dir.ResolveRole(ctx, server.ID, p.RoleID); err != nil {
			o.log.Warn().
				Err(err).
				Str("role_id", p.RoleID).
				Msg("secondary pair role unresolvable; dropping")
			continue
		}
		secondaryIDs = append(secondaryIDs, p.RoleID)
		templates = append(templates, p.Template)
	}
	if len(secondaryIDs) == 0 {
		o.log.Warn().Msg("no usable secondary pair roles; skipping pair phase")
		return
	}

	visit := func(m directory.Member) error {
		idx, ok := rules.MatchPair(m, primary.ID, secondaryIDs)
		if !ok {
			return nil
		}
		if exec.ApplyRemoval(ctx, m, primary, templates[idx]) {
			stats.PairResolved++
			o.pause(ctx, o.opts.MutatePause)
		}
		return nil
	}

	if o.cfg.Targeted() {
		m, err := o.dir.FetchMember(ctx, server.ID, o.cfg.TargetMemberID)
		if err != nil {
			o.log.Warn().
				Err(err).
				Str("member_id", o.cfg.TargetMemberID).
				Msg("target member not found; skipping pair phase")
			return
		}
		_ = visit(m)
		return
	}
	if err := o.dir.ListMembers(ctx, server.ID, visit); err != nil {
		o.log.Warn().Err(err).Msg("member listing failed; pair phase incomplete")
	}
}

// runTenurePhase grants the tenure role to members past the threshold. The
// grant role is the run's primary purpose, so failing to resolve it is fatal.
func (o *Orchestrator) runTenurePhase(ctx context.Context, server directory.Server, exec *Executor, stats *Stats) error {
	role, err := o.dir.ResolveRole(ctx, server.ID, o.cfg.GrantRoleID)
	if err != nil {
		return fmt.Errorf("resolve grant role %s: %w", o.cfg.GrantRoleID, err)
	}

	in := rules.TenureInput{
		GrantRoleID:    role.ID,
		ExcludeRoleIDs: o.cfg.ExcludeRoleIDs,
		Threshold:      o.cfg.Threshold(),
		Force:          o.cfg.ForceAssign,
	}
	now := o.opts.Now()

	if o.cfg.Targeted() {
		m, err := o.dir.FetchMember(ctx, server.ID, o.cfg.TargetMemberID)
		if err != nil {
			o.log.Warn().
				Err(err).
				Str("member_id", o.cfg.TargetMemberID).
				Msg("target member not found; skipping tenure phase")
			return nil
		}
		stats.Checked++
		if !rules.Tenure(m, in, now) {
			o.log.Info().
				Str("member", m.DisplayName).
				Msg("target member does not qualify for tenure grant")
			return nil
		}
		if exec.ApplyGrant(ctx, m, role) {
			stats.TenureGranted++
		}
		return nil
	}

	o.log.Info().
		Time("cutoff", now.Add(-in.Threshold)).
		Strs("exclude_role_ids", o.cfg.ExcludeRoleIDs).
		Msg("tenure full scan")

	err = o.dir.ListMembers(ctx, server.ID, func(m directory.Member) error {
		stats.Checked++
		if m.Bot || m.Pending || !m.Joined() {
			return nil
		}
		if rules.Tenure(m, in, now) {
			if exec.ApplyGrant(ctx, m, role) {
				stats.TenureGranted++
			}
		}
		o.pause(ctx, o.opts.VisitPause)
		return nil
	})
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	return nil
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
