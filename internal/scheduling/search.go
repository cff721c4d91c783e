package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Searcher enumerates, filters, and ranks candidate slots for a set of
// parties. It holds no per-request state; one Searcher serves concurrent
// searches.
type Searcher struct {
	query  CalendarQuery
	cfg    Config
	logger *zap.Logger
}

// NewSearcher creates a slot searcher over the given calendar port.
func NewSearcher(query CalendarQuery, cfg Config, logger *zap.Logger) *Searcher {
	return &Searcher{query: query, cfg: cfg, logger: logger}
}

// Config returns the searcher's scheduling configuration.
func (s *Searcher) Config() Config { return s.cfg }

// Search validates the intent, then enumerates every candidate slot within
// horizonDays either side of the preferred start and returns the top-ranked
// survivors. An empty result is a normal outcome, not an error.
func (s *Searcher) Search(ctx context.Context, intent MeetingIntent, parties []Party, horizonDays int) ([]CandidateSlot, error) {
	if err := ValidateIntent(intent, s.cfg); err != nil {
		return nil, err
	}

	horizon := time.Duration(horizonDays) * 24 * time.Hour
	from := intent.PreferredStart.Add(-horizon)
	to := intent.PreferredStart.Add(horizon)

	slots, err := s.FindSlots(ctx, intent.DurationMin, intent.PreferredStart, parties, from, to)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("slot search complete",
		zap.String("title", intent.Title),
		zap.Int("candidates", len(slots)),
		zap.Int("horizon_days", horizonDays))

	if s.cfg.TopN > 0 && len(slots) > s.cfg.TopN {
		slots = slots[:s.cfg.TopN]
	}
	return slots, nil
}

// FindSlots enumerates granularity-aligned candidates on every business day
// touched by [from, to], classifies each against every party's calendar, and
// ranks the usable ones. The window clips at day granularity: a horizon that
// reaches any part of a day opens that whole business day. Only "now" and
// the configured valid date range cut within a day. Used directly by the
// negotiation loop for single-party counter-proposal searches.
func (s *Searcher) FindSlots(ctx context.Context, durationMin int, preferred time.Time, parties []Party, from, to time.Time) ([]CandidateSlot, error) {
	notBefore := s.cfg.now()
	if !s.cfg.ValidFrom.IsZero() && notBefore.Before(s.cfg.ValidFrom) {
		notBefore = s.cfg.ValidFrom
	}
	if !s.cfg.ValidUntil.IsZero() && to.After(s.cfg.ValidUntil) {
		to = s.cfg.ValidUntil
	}
	if to.Before(from) || to.Before(notBefore) {
		return nil, nil
	}

	duration := time.Duration(durationMin) * time.Minute
	var out []CandidateSlot

	firstDay := dayStart(from)
	if d := dayStart(notBefore); d.After(firstDay) {
		firstDay = d
	}
	for day := firstDay; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !businessDay(day) {
			continue
		}
		openMin := s.cfg.BusinessOpen * 60
		closeMin := s.cfg.BusinessClose * 60
		for m := openMin; m+durationMin <= closeMin; m += s.cfg.GranularityMin {
			start := day.Add(time.Duration(m) * time.Minute)
			if start.Before(notBefore) {
				continue
			}
			if !s.cfg.ValidUntil.IsZero() && start.After(s.cfg.ValidUntil) {
				continue
			}
			end := start.Add(duration)

			slot, ok, err := s.assess(ctx, start, end, parties)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			slot.Score = s.scoreSlot(start, preferred, slot, parties)
			out = append(out, slot)
		}
	}

	sortSlots(out, preferred)
	return out, nil
}

// assess classifies [start, end) for every party. It returns ok=false when
// any party finds the interval unusable under its own profile.
func (s *Searcher) assess(ctx context.Context, start, end time.Time, parties []Party) (CandidateSlot, bool, error) {
	slot := CandidateSlot{Start: start, End: end}
	for _, p := range parties {
		blocks, err := s.query.CheckConflicts(ctx, p.ID, start, end)
		if err != nil {
			return CandidateSlot{}, false, infraErr(fmt.Sprintf("calendar query for %s", p.ID), err)
		}
		a := Classify(start, end, blocks, p.Profile)
		if !a.Usable(p.Profile) {
			return CandidateSlot{}, false, nil
		}
		if soft := a.Soft(); len(soft) > 0 {
			if slot.Conflicts == nil {
				slot.Conflicts = make(map[string][]Conflict)
			}
			slot.Conflicts[p.ID] = soft
		}
	}
	return slot, true, nil
}

// scoreSlot applies the base score plus the configurable adjustments:
// a penalty per surviving soft conflict and each party's preferred-hour
// weight. The adjustments tune ranking between otherwise-usable slots; the
// ordering guarantees live in Score itself.
func (s *Searcher) scoreSlot(start, preferred time.Time, slot CandidateSlot, parties []Party) int {
	score := Score(start, preferred)
	for _, soft := range slot.Conflicts {
		score -= s.cfg.SoftPenalty * len(soft)
	}
	for _, p := range parties {
		score += p.Profile.WeightFor(start.Hour())
	}
	return score
}

// sortSlots orders candidates best-first. The preferred instant, when it
// survived filtering, always ranks first; after that score descending with
// ties broken by earliest start.
func sortSlots(slots []CandidateSlot, preferred time.Time) {
	sort.SliceStable(slots, func(i, j int) bool {
		ei, ej := slots[i].Start.Equal(preferred), slots[j].Start.Equal(preferred)
		if ei != ej {
			return ei
		}
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}
