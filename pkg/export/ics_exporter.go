package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is one weekly recurring session.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	// Weeks is the RRULE COUNT; zero repeats indefinitely.
	Weeks int
}

// Calendar groups events under a calendar name.
type Calendar struct {
	Name     string
	Timezone string
	Events   []CalendarEvent
}

// ICSExporter renders calendars in iCalendar format.
type ICSExporter struct {
	now func() time.Time
}

// NewICSExporter builds an iCalendar exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{now: time.Now}
}

// Render serialises every event as a VEVENT with a weekly recurrence rule.
func (e *ICSExporter) Render(data Calendar) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//timetable-api//weekly timetable//EN")
	if data.Name != "" {
		cal.SetXWRCalName(data.Name)
	}
	if data.Timezone != "" {
		cal.SetXWRTimezone(data.Timezone)
	}

	stamp := e.now().UTC()
	for _, item := range data.Events {
		if item.UID == "" {
			return nil, fmt.Errorf("ics event %q has no uid", item.Summary)
		}
		if !item.End.After(item.Start) {
			return nil, fmt.Errorf("ics event %s ends before it starts", item.UID)
		}
		event := cal.AddEvent(item.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(item.Start)
		event.SetEndAt(item.End)
		event.SetSummary(item.Summary)
		if item.Description != "" {
			event.SetDescription(item.Description)
		}
		rule := "FREQ=WEEKLY"
		if item.Weeks > 0 {
			rule = fmt.Sprintf("FREQ=WEEKLY;COUNT=%d", item.Weeks)
		}
		event.SetProperty(ics.ComponentPropertyRrule, rule)
	}
	return []byte(cal.Serialize()), nil
}
