package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Announcer delivers a human-readable scheduling announcement to one
// outbound channel.
type Announcer interface {
	Platform() string
	Announce(ctx context.Context, text string) error
}

// Fanout sends announcements to every registered channel. Delivery is
// best-effort: a failing channel is logged and skipped.
type Fanout struct {
	announcers []Announcer
	logger     *zap.Logger
}

// NewFanout creates an announcement fanout.
func NewFanout(logger *zap.Logger) *Fanout {
	return &Fanout{logger: logger}
}

// Register adds an outbound channel.
func (f *Fanout) Register(a Announcer) {
	f.announcers = append(f.announcers, a)
	f.logger.Info("announcer registered", zap.String("platform", a.Platform()))
}

// Announce delivers text to all channels.
func (f *Fanout) Announce(ctx context.Context, text string) {
	for _, a := range f.announcers {
		if err := a.Announce(ctx, text); err != nil {
			f.logger.Warn("announcement failed",
				zap.String("platform", a.Platform()), zap.Error(err))
		}
	}
}

// MeetingScheduled formats the standard announcement for a committed slot.
func MeetingScheduled(title string, start, end time.Time, partyNames []string) string {
	return fmt.Sprintf("Meeting scheduled: %q on %s, %s–%s (%s)",
		title,
		start.Format("Monday 2006-01-02"),
		start.Format("15:04"),
		end.Format("15:04"),
		joinNames(partyNames))
}

// NegotiationEnded formats the announcement for a run that did not agree.
func NegotiationEnded(title, outcome, reason string, rounds int) string {
	return fmt.Sprintf("Negotiation for %q ended %s after %d round(s): %s",
		title, outcome, rounds, reason)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "no participants"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		out := ""
		for i, n := range names[:len(names)-1] {
			if i > 0 {
				out += ", "
			}
			out += n
		}
		return out + ", and " + names[len(names)-1]
	}
}
