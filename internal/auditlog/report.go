package auditlog

import (
	"context"
	"sort"
)

// TopUsersLimit caps Report.TopUsers.
const TopUsersLimit = 10

// GenerateReport aggregates every event between start and end inclusive.
// Only events carrying an action count as completed operations; WARNING and
// ERROR events without one count as failed attempts.
func (a *Analyzer) GenerateReport(ctx context.Context, start, end string) (Report, error) {
	startDay, err := ParseDate(start)
	if err != nil {
		return Report{}, err
	}
	endDay, err := ParseDate(end)
	if err != nil {
		return Report{}, err
	}

	agg := newReportBuilder(Period{Start: startDay.Format(DateLayout), End: endDay.Format(DateLayout)})
	for _, date := range DateRange(startDay, endDay) {
		if err := a.scanDay(ctx, date, agg.add); err != nil {
			return Report{}, err
		}
	}
	return agg.build(), nil
}

type reportBuilder struct {
	report  Report
	users   map[string]struct{}
	tallies map[string]*UserActivity
	named   map[string]bool
	order   []string
}

func newReportBuilder(period Period) *reportBuilder {
	return &reportBuilder{
		report: Report{
			Period:       period,
			TopUsers:     []UserActivity{},
			RecentEvents: []RecentEvent{},
			ByAction:     map[string]int{},
			ByUser:       map[string]UserActivity{},
		},
		users:   make(map[string]struct{}),
		tallies: make(map[string]*UserActivity),
		named:   make(map[string]bool),
	}
}

func (b *reportBuilder) add(ev Event) {
	c := ev.Context
	actorID := c.String(KeyActorUserID)
	if actorID != "" {
		b.users[actorID] = struct{}{}
	}

	if ev.Completed() {
		action := ev.Action()
		b.report.TotalEvents++
		b.report.ByAction[action]++
		if action == ActionUserUpdated || action == ActionUserDeleted {
			b.report.Modifications++
		}

		if actorID != "" {
			tally, ok := b.tallies[actorID]
			if !ok {
				tally = &UserActivity{UserID: actorID}
				b.tallies[actorID] = tally
				b.order = append(b.order, actorID)
			}
			// first non-empty username wins
			if name := c.String(KeyActorUsername); name != "" && !b.named[actorID] {
				tally.Username = name
				b.named[actorID] = true
			} else if tally.Username == "" {
				tally.Username = "User " + actorID
			}
			tally.Count++
			tally.LastActivity = ev.Timestamp
		}

		b.report.RecentEvents = append(b.report.RecentEvents, RecentEvent{
			Timestamp: ev.Timestamp,
			UserID:    firstNonEmpty(c.String(KeyActorUsername), actorID, "-"),
			Action:    action,
			Target:    firstNonEmpty(c.String(KeyTargetEmail), c.String(KeyTargetUserID), "-"),
			Success:   true,
		})
	}

	if ev.FailedAttempt() {
		b.report.FailedAttempts++
	}
}

func (b *reportBuilder) build() Report {
	r := b.report
	r.UniqueUsers = len(b.users)

	top := make([]UserActivity, 0, len(b.order))
	for _, id := range b.order {
		tally := *b.tallies[id]
		r.ByUser[id] = tally
		top = append(top, tally)
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})
	if len(top) > TopUsersLimit {
		top = top[:TopUsersLimit]
	}
	r.TopUsers = top

	sort.SliceStable(r.RecentEvents, func(i, j int) bool {
		return r.RecentEvents[i].Timestamp > r.RecentEvents[j].Timestamp
	})
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
