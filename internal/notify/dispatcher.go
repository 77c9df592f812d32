// Package notify delivers best-effort direct messages to members. Failures
// are logged and isolated per member; they never propagate to the caller.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/koivu/rolewarden/internal/directory"
)

// Options tunes dispatcher behavior. Pacing values are rate-limit courtesy,
// not a correctness contract.
type Options struct {
	DryRun bool
	// SegmentPause is the delay between segments of a multi-segment message.
	SegmentPause time.Duration
}

// DefaultOptions returns the runtime defaults.
func DefaultOptions() Options {
	return Options{SegmentPause: 200 * time.Millisecond}
}

// Dispatcher sends DMs through the platform messenger.
type Dispatcher struct {
	msg  directory.Messenger
	opts Options
	log  zerolog.Logger
}

func NewDispatcher(msg directory.Messenger, opts Options, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{msg: msg, opts: opts, log: log}
}

// SendSingle delivers one message. Blank text is a silent no-op.
func (d *Dispatcher) SendSingle(ctx context.Context, member directory.Member, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.deliver(ctx, member, text)
}

// SendMultiSegment splits text on line boundaries and delivers each non-empty
// line as its own message, pausing between segments. The first failed segment
// aborts the remainder for this member; nothing is retried.
func (d *Dispatcher) SendMultiSegment(ctx context.Context, member directory.Member, text string) {
	segments := splitSegments(text)
	for i, segment := range segments {
		if i > 0 && !d.opts.DryRun {
			if !d.pause(ctx) {
				return
			}
		}
		if !d.deliver(ctx, member, segment) {
			return
		}
	}
}

// deliver sends one message, honoring dry-run. Returns false when remaining
// segments for this member should be dropped.
func (d *Dispatcher) deliver(ctx context.Context, member directory.Member, text string) bool {
	if d.opts.DryRun {
		d.log.Info().
			Str("member", member.ID).
			Str("text", text).
			Msg("dry-run: would send DM")
		return true
	}
	err := d.msg.DirectMessage(ctx, member.ID, text)
	if err == nil {
		return true
	}
	if errors.Is(err, directory.ErrForbidden) {
		d.log.Warn().
			Str("member", member.DisplayName).
			Msg("could not DM member (DMs disabled or privacy settings)")
		return false
	}
	d.log.Warn().
		Err(err).
		Str("member", member.DisplayName).
		Msg("transport error while DMing member")
	return false
}

func (d *Dispatcher) pause(ctx context.Context) bool {
	if d.opts.SegmentPause <= 0 {
		return true
	}
	timer := time.NewTimer(d.opts.SegmentPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func splitSegments(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		v := strings.TrimSpace(line)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
