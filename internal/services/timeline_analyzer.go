package services

import (
	"math"
	"sort"
	"time"

	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/models"
)

// AnalyzeTimeline groups events into workdays by local calendar date in loc
// and measures, per workday, how much of the span between its first and last
// event the order spent EN_PROGRESO. The state in effect at the end of one
// workday carries into the next, but the overnight gap is never counted.
func AnalyzeTimeline(events []*models.TimelineEvent, loc *time.Location) (workdays []dtos.Workday, elapsed, inProgress time.Duration) {
	if loc == nil {
		loc = time.UTC
	}
	sorted := append([]*models.TimelineEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})

	workdays = []dtos.Workday{}
	var state models.WorkOrderState
	for start := 0; start < len(sorted); {
		date := sorted[start].OccurredAt.In(loc).Format("2006-01-02")
		end := start
		for end < len(sorted) && sorted[end].OccurredAt.In(loc).Format("2006-01-02") == date {
			end++
		}
		day := sorted[start:end]

		var busy time.Duration
		cursor := day[0].OccurredAt
		for _, e := range day {
			if state == models.WorkOrderStateEnProgreso {
				busy += e.OccurredAt.Sub(cursor)
			}
			cursor = e.OccurredAt
			if e.ToState != nil {
				state = *e.ToState
			}
		}

		first, last := day[0].OccurredAt, day[len(day)-1].OccurredAt
		span := last.Sub(first)
		workdays = append(workdays, dtos.Workday{
			Date:              date,
			FirstEventAt:      first.In(loc),
			LastEventAt:       last.In(loc),
			ElapsedSeconds:    int64(span / time.Second),
			InProgressSeconds: int64(busy / time.Second),
			ProductivityRatio: ratio(busy, span),
			Events:            day,
		})
		elapsed += span
		inProgress += busy
		start = end
	}
	return workdays, elapsed, inProgress
}

// ratio is part/whole rounded to four decimals, or 0 for an empty whole.
func ratio(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 10000
}
