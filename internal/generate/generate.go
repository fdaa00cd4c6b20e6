/*
Package generate assembles the market calendar: it pulls scheduled earnings
announcements and the exchange trading calendar, maps each record to one
calendar event and serializes the result as an iCalendar document.
*/
package generate

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/jpx-tools/jpxcal/internal/ics"
	"github.com/jpx-tools/jpxcal/internal/jquants"
	"github.com/jpx-tools/jpxcal/internal/types"
)

// AnnouncementSource lists scheduled earnings announcements.
type AnnouncementSource interface {
	Announcements(ctx context.Context) ([]types.Announcement, error)
}

// CalendarSource lists trading calendar entries for a YYYY-MM-DD date range.
type CalendarSource interface {
	TradingCalendar(ctx context.Context, from, to string) ([]types.TradingDay, error)
}

const (
	defaultHorizonDays  = 365
	defaultCalendarName = "JPX Market Calendar"

	dateLayout = "2006-01-02"
)

// Generator builds the combined market calendar. A nil Calendar source skips
// the holiday events (announcements-only run).
type Generator struct {
	Announcements AnnouncementSource
	Calendar      CalendarSource

	CalendarName string
	HorizonDays  int
	Now          func() time.Time
}

// Run fetches both data sets and writes the resulting ICS document to w,
// returning the number of events written.
func (g *Generator) Run(ctx context.Context, w io.Writer) (int, error) {
	events, err := g.collectEvents(ctx)
	if err != nil {
		return 0, err
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].UID < events[j].UID
	})

	name := g.CalendarName
	if name == "" {
		name = defaultCalendarName
	}
	if err := ics.Encode(w, name, events); err != nil {
		return 0, fmt.Errorf("failed to serialize calendar: %w", err)
	}
	return len(events), nil
}

func (g *Generator) collectEvents(ctx context.Context) ([]ics.Event, error) {
	anns, err := g.Announcements.Announcements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch announcements: %w", err)
	}

	var events []ics.Event
	for _, ann := range anns {
		if ann.Date == "" {
			continue
		}
		ev, err := ics.AnnouncementEvent(ann)
		if err != nil {
			log.Printf("Warning: skipping announcement for %s: %v", ann.Code, err)
			continue
		}
		events = append(events, ev)
	}

	if g.Calendar == nil {
		return events, nil
	}

	days, err := g.fetchTradingCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trading calendar: %w", err)
	}
	for _, day := range days {
		if !day.IsHoliday() {
			continue
		}
		ev, err := ics.HolidayEvent(day)
		if err != nil {
			log.Printf("Warning: skipping calendar entry %q: %v", day.Date, err)
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

// fetchTradingCalendar asks for the coming year. When the API answers that
// the range exceeds the account's subscription period, the error message
// names the period that is available; the request is retried exactly once,
// clamped to that period. Any other error propagates unmodified.
func (g *Generator) fetchTradingCalendar(ctx context.Context) ([]types.TradingDay, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	horizon := g.HorizonDays
	if horizon <= 0 {
		horizon = defaultHorizonDays
	}

	from := now().Format(dateLayout)
	to := now().AddDate(0, 0, horizon).Format(dateLayout)

	days, err := g.Calendar.TradingCalendar(ctx, from, to)
	if err == nil {
		return days, nil
	}

	subFrom, subTo, ok := jquants.SubscriptionPeriod(err)
	if !ok {
		return nil, err
	}

	retryFrom, retryTo := clampRange(from, to, subFrom, subTo)
	log.Printf("Requested range %s..%s exceeds the subscription period, retrying with %s..%s.",
		from, to, retryFrom, retryTo)
	return g.Calendar.TradingCalendar(ctx, retryFrom, retryTo)
}

// clampRange narrows [from, to] into [subFrom, subTo]. Lexicographic
// comparison is ordering-correct for YYYY-MM-DD strings.
func clampRange(from, to, subFrom, subTo string) (string, string) {
	if from < subFrom {
		from = subFrom
	}
	if to > subTo {
		to = subTo
	}
	return from, to
}
