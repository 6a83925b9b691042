// Package event defines the recurring event types the scheduler processes
// and the pure timing decisions for them.
//
// Each Type carries its own date column and sent-state columns so multiple
// recurring events (birthday, anniversary) run as independent passes — one
// type's sent flag never blocks another's.
package event

import (
	"fmt"
	"strings"
	"time"
)

// Type describes one recurring yearly event.
type Type struct {
	Name           string
	DateColumn     string
	SentFlagColumn string
	SentAtColumn   string
	Subject        string
	bodyFormat     string
}

// Body renders the outbound message body for a user.
func (t Type) Body(firstName, lastName string) string {
	return fmt.Sprintf(t.bodyFormat, firstName, lastName)
}

var (
	Birthday = Type{
		Name:           "birthday",
		DateColumn:     "birthday",
		SentFlagColumn: "birthday_sent_status",
		SentAtColumn:   "birthday_sent",
		Subject:        "Happy Birthday!",
		bodyFormat:     "Hey, %s %s, it's your birthday!",
	}

	Anniversary = Type{
		Name:           "anniversary",
		DateColumn:     "anniversary",
		SentFlagColumn: "anniversary_sent_status",
		SentAtColumn:   "anniversary_sent",
		Subject:        "Happy Anniversary!",
		bodyFormat:     "Hey, %s %s, happy anniversary!",
	}
)

var registry = map[string]Type{
	Birthday.Name:    Birthday,
	Anniversary.Name: Anniversary,
}

// Types resolves configured event type names to their definitions.
// Column names always come from this registry, never from input, so they are
// safe to interpolate into SQL.
func Types(names []string) ([]Type, error) {
	types := make([]Type, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		t, ok := registry[key]
		if !ok {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		types = append(types, t)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no event types configured")
	}
	return types, nil
}

// FireTime is the configured local time-of-day at which a due event fires.
type FireTime struct {
	Hour   int
	Minute int
	Second int
}

func (f FireTime) seconds() int {
	return f.Hour*3600 + f.Minute*60 + f.Second
}

func (f FireTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", f.Hour, f.Minute, f.Second)
}

// on anchors the fire time to a calendar day in a location.
func (f FireTime) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, f.Hour, f.Minute, f.Second, 0, loc)
}
