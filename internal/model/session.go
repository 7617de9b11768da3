package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle flag of a session.  Only active sessions are
// bookable and only active sessions take part in the overlap rule.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Session is one dated occurrence of a class with a fixed capacity.
//
// Fields:
//  ID                – primary key, server assigned.
//  ClassID           – opaque reference to the class in the content platform.
//  ProductID         – catalog entry linked to the session, unique when set.
//  Date              – calendar day of the session (YYYY-MM-DD).
//  StartTime/EndTime – half-open interval [start, end) on Date.
//  Capacity          – total seats, at least 1.
//  RemainingCapacity – seats not yet consumed by completed orders.
//  Status            – active or inactive.
type Session struct {
	ID                uint64    `json:"id"`                   // class_sessions.id
	ClassID           uint64    `json:"classId"`              // class_sessions.class_id
	ProductID         *uint64   `json:"productId,omitempty"`  // class_sessions.product_id
	Date              Date      `json:"date"`                 // class_sessions.session_date
	StartTime         TimeOfDay `json:"startTime"`            // class_sessions.start_time
	EndTime           TimeOfDay `json:"endTime"`              // class_sessions.end_time
	Capacity          int       `json:"capacity"`             // class_sessions.capacity
	RemainingCapacity int       `json:"remainingCapacity"`    // class_sessions.remaining_capacity
	Status            Status    `json:"status"`               // class_sessions.status
	CreatedAt         time.Time `json:"createdAt"`            // class_sessions.created_at
	UpdatedAt         time.Time `json:"updatedAt"`            // class_sessions.updated_at
}

// Booked is the number of seats already consumed.
func (s *Session) Booked() int {
	return s.Capacity - s.RemainingCapacity
}

// Bookable reports whether customers may still reserve seats on a day
// where the calendar date is today.
func (s *Session) Bookable(today Date) bool {
	return s.Status == StatusActive && s.RemainingCapacity > 0 && s.Date >= today
}

// Date is a calendar day formatted as YYYY-MM-DD.  The zero-padded form
// sorts lexicographically, so dates can be compared as strings in SQL.
type Date string

const dateLayout = "2006-01-02"

// ParseDate validates a YYYY-MM-DD string, rejecting impossible days such
// as 2024-02-30.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(t.Format(dateLayout)), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) String() string { return string(d) }

// Scan accepts DATE values as time.Time (mysql with parseTime) or text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
	case []byte:
		return d.scanText(string(v))
	case string:
		return d.scanText(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (d *Date) scanText(s string) error {
	if len(s) < len(dateLayout) {
		return fmt.Errorf("cannot scan %q into Date", s)
	}
	*d = Date(s[:len(dateLayout)])
	return nil
}

// Value stores the date as text so every driver compares it the same way.
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

// TimeOfDay is a wall-clock time formatted as HH:MM:SS.
type TimeOfDay string

// ParseTimeOfDay accepts HH:MM or HH:MM:SS and normalises to HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Format("15:04:05")), nil
		}
	}
	return "", fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", s)
}

func (t TimeOfDay) String() string { return string(t) }

// Scan accepts TIME values returned as text or bytes.
func (t *TimeOfDay) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case time.Time:
		*t = TimeOfDay(v.Format("15:04:05"))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time as HH:MM:SS text.
func (t TimeOfDay) Value() (driver.Value, error) {
	return string(t), nil
}

// DateAvailability summarises the bookable sessions of one day.
type DateAvailability struct {
	Date           Date `json:"date"`
	SessionCount   int  `json:"sessionCount"`
	TotalRemaining int  `json:"totalRemaining"`
}
