// Package user provides the user model and its Postgres store: CRUD for the
// HTTP layer plus the delivery-tracking operations the scheduler consumes.
package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/birthday-notifier/internal/event"
)

// Status is the user lifecycle state. Only active users are evaluated by the
// periodic scheduler tick.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Date is a calendar date without a time-of-day. Stored as a Postgres DATE
// and rendered as "2006-01-02" in JSON.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return fmt.Errorf("date must not be empty")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	d.Time = t
	return nil
}

// User is one registry record.
type User struct {
	ID                    int64      `json:"id"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Email                 string     `json:"email"`
	Birthday              Date       `json:"birthday"`
	Anniversary           *Date      `json:"anniversary"`
	City                  string     `json:"city"`
	Status                Status     `json:"status"`
	BirthdaySentStatus    bool       `json:"birthday_sent_status"`
	BirthdaySent          *time.Time `json:"birthday_sent"`
	AnniversarySentStatus bool       `json:"anniversary_sent_status"`
	AnniversarySent       *time.Time `json:"anniversary_sent"`
	CreatedAt             time.Time  `json:"created_at"`
}

// EventDate returns the stored date for an event type, or nil when the user
// has none (users without an anniversary are skipped for that pass).
func (u *User) EventDate(t event.Type) *time.Time {
	switch t.Name {
	case event.Birthday.Name:
		return &u.Birthday.Time
	case event.Anniversary.Name:
		if u.Anniversary == nil {
			return nil
		}
		return &u.Anniversary.Time
	}
	return nil
}

// Sent returns the sent flag for an event type.
func (u *User) Sent(t event.Type) bool {
	switch t.Name {
	case event.Birthday.Name:
		return u.BirthdaySentStatus
	case event.Anniversary.Name:
		return u.AnniversarySentStatus
	}
	return false
}

// NewUser carries the fields accepted at creation.
type NewUser struct {
	FirstName   string
	LastName    string
	Email       string
	Birthday    Date
	Anniversary *Date
	City        string
	Status      Status
}

// Update carries a partial field map for PUT. Nil fields are left untouched.
type Update struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Birthday    *Date
	Anniversary *Date
	City        *string
	Status      *Status
}
