package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ClockTime is a time of day expressed in minutes after midnight.
type ClockTime int

// Clock builds a ClockTime from hour and minute components.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % 60 }

// Add returns c shifted by minutes.
func (c ClockTime) Add(minutes int) ClockTime { return c + ClockTime(minutes) }

// String renders the 24h representation, e.g. "08:00".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Kitchen renders the 12h representation used in printed timetables, e.g. "8:00 AM".
func (c ClockTime) Kitchen() string {
	hours := c.Hour()
	period := "AM"
	if hours >= 12 {
		period = "PM"
	}
	hours %= 12
	if hours == 0 {
		hours = 12
	}
	return fmt.Sprintf("%d:%02d %s", hours, c.Minute(), period)
}

// MarshalJSON encodes the clock as "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM" strings or raw minute counts.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var minutes int
		if err := json.Unmarshal(data, &minutes); err != nil {
			return fmt.Errorf("clock time must be a HH:MM string or minute count")
		}
		*c = ClockTime(minutes)
		return nil
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseClock parses "HH:MM" into a ClockTime.
func ParseClock(raw string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid clock hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock minute in %q", raw)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	return Clock(hour, minute), nil
}
