package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/koivu/rolewarden/internal/config"
	"github.com/koivu/rolewarden/internal/directory"
	"github.com/koivu/rolewarden/internal/notify"
)

// Executor applies a single role mutation to a member and triggers the
// follow-up notification. Mutations are idempotent against the snapshot: a
// grant of a held role or a removal of an absent role is a no-op. A mutation
// is attempted exactly once; failures are logged and reported as not applied.
type Executor struct {
	dir    directory.Directory
	dsp    *notify.Dispatcher
	cfg    config.Rules
	server directory.Server
	log    zerolog.Logger
}

func NewExecutor(dir directory.Directory, dsp *notify.Dispatcher, cfg config.Rules, server directory.Server, log zerolog.Logger) *Executor {
	return &Executor{dir: dir, dsp: dsp, cfg: cfg, server: server, log: log}
}

// ApplyGrant grants role to the member and sends the single-message tenure
// DM. Returns whether the grant was applied (or would be, under dry-run).
// Notification failures do not affect the result.
func (e *Executor) ApplyGrant(ctx context.Context, member directory.Member, role directory.Role) bool {
	if member.HasRole(role.ID) {
		e.log.Debug().
			Str("member", member.DisplayName).
			Str("role", role.Name).
			Msg("member already has role; skipping")
		return false
	}

	if e.cfg.DryRun {
		e.log.Info().
			Str("member", member.DisplayName).
			Str("role", role.Name).
			Msg("dry-run: would grant role")
	} else {
		err := e.dir.GrantRole(ctx, e.server.ID, member.ID, role.ID, e.grantReason())
		if !e.applied(err, member, role, "grant") {
			return false
		}
	}

	text := RenderTemplate(e.cfg.GrantTemplate, member, e.server, e.cfg.ThresholdDays, role)
	e.dsp.SendSingle(ctx, member, text)
	return true
}

// ApplyRemoval removes role from the member and sends the matched pair
// template as a multi-segment DM. Returns whether the removal was applied
// (or would be, under dry-run).
func (e *Executor) ApplyRemoval(ctx context.Context, member directory.Member, role directory.Role, template string) bool {
	if !member.HasRole(role.ID) {
		e.log.Debug().
			Str("member", member.DisplayName).
			Str("role", role.Name).
			Msg("member does not hold role; skipping removal")
		return false
	}

	if e.cfg.DryRun {
		e.log.Info().
			Str("member", member.DisplayName).
			Str("role", role.Name).
			Msg("dry-run: would remove role")
	} else {
		err := e.dir.RemoveRole(ctx, e.server.ID, member.ID, role.ID, "rolewarden: pair resolution")
		if !e.applied(err, member, role, "removal") {
			return false
		}
	}

	text := RenderTemplate(template, member, e.server, e.cfg.ThresholdDays, role)
	e.dsp.SendMultiSegment(ctx, member, text)
	return true
}

// applied classifies the mutation outcome: permission and transport failures
// are warnings, never run-fatal, never retried.
func (e *Executor) applied(err error, member directory.Member, role directory.Role, op string) bool {
	if err == nil {
		return true
	}
	evt := e.log.Warn().
		Str("member", member.DisplayName).
		Str("role", role.Name).
		Str("op", op)
	if errors.Is(err, directory.ErrForbidden) {
		evt.Msg("missing permission for role mutation")
	} else {
		evt.Err(err).Msg("role mutation failed")
	}
	return false
}

func (e *Executor) grantReason() string {
	if e.cfg.ForceAssign {
		return "rolewarden: tenure grant (forced)"
	}
	return "rolewarden: tenure grant"
}
