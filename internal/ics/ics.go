/*
Package ics maps market records to calendar events and serializes them as a
single iCalendar document.
*/
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/jpx-tools/jpxcal/internal/types"
)

const (
	productID = "-//jpxcal//JPX Market Calendar//JA"
	timezone  = "Asia/Tokyo"

	dateLayout    = "2006-01-02"
	icsDateLayout = "20060102"
)

// Event is a single calendar entry before serialization. AllDay events carry
// only a date; otherwise Start is preserved as an exact timestamp.
type Event struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	AllDay      bool
}

// AnnouncementEvent maps an earnings announcement to an all-day event.
// A malformed date is the only failure mode.
func AnnouncementEvent(ann types.Announcement) (Event, error) {
	date, err := time.Parse(dateLayout, ann.Date)
	if err != nil {
		return Event{}, fmt.Errorf("invalid announcement date %q: %w", ann.Date, err)
	}

	summary := fmt.Sprintf("[決算] %s (%s)", ann.CompanyName, ann.Code)
	if ann.FiscalQuarter != "" {
		summary += " " + ann.FiscalQuarter
	}
	if ann.FiscalYear != "" {
		summary += " " + ann.FiscalYear
	}

	return Event{
		UID:     fmt.Sprintf("%s-announcement-%s", ann.Code, ann.Date),
		Summary: summary,
		Start:   date,
		AllDay:  true,
	}, nil
}

// HolidayEvent maps a non-trading day to an all-day event.
func HolidayEvent(day types.TradingDay) (Event, error) {
	date, err := time.Parse(dateLayout, day.Date)
	if err != nil {
		return Event{}, fmt.Errorf("invalid calendar date %q: %w", day.Date, err)
	}

	return Event{
		UID:     "holiday-" + day.Date,
		Summary: "[休場日] 取引所休場",
		Start:   date,
		AllDay:  true,
	}, nil
}

// Encode writes the events as one VCALENDAR document. UIDs are deterministic
// so calendar clients can update in place on re-import.
func Encode(w io.Writer, name string, events []Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText("X-WR-CALNAME", name)
	cal.Props.SetText("X-WR-TIMEZONE", timezone)

	stamp := time.Now().UTC()
	for _, ev := range events {
		cal.Children = append(cal.Children, vevent(ev, stamp))
	}

	return ical.NewEncoder(w).Encode(cal)
}

func vevent(ev Event, stamp time.Time) *ical.Component {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.UID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	event.Props.SetText(ical.PropSummary, ev.Summary)
	if ev.Description != "" {
		event.Props.SetText(ical.PropDescription, ev.Description)
	}

	if ev.AllDay {
		start := ical.NewProp(ical.PropDateTimeStart)
		start.SetValueType(ical.ValueDate)
		start.Value = ev.Start.Format(icsDateLayout)
		event.Props.Set(start)

		// All-day events end on the following day per RFC 5545.
		end := ical.NewProp(ical.PropDateTimeEnd)
		end.SetValueType(ical.ValueDate)
		end.Value = ev.Start.AddDate(0, 0, 1).Format(icsDateLayout)
		event.Props.Set(end)
	} else {
		event.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	}

	return event.Component
}
