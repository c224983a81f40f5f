package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Instructor struct {
	bun.BaseModel `bun:"table:instructors"`

	ID        string    `bun:"id,pk" json:"id" yaml:"id"`
	FirstName string    `bun:"first_name,notnull" json:"firstName" yaml:"firstName"`
	LastName  string    `bun:"last_name,notnull" json:"lastName" yaml:"lastName"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"-" yaml:"-"`
}

func (i *Instructor) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		return stampNew(&i.ID, &i.CreatedAt)
	}
	return nil
}

func (i Instructor) DisplayName() string {
	return displayName(i.FirstName, i.LastName)
}

type Client struct {
	bun.BaseModel `bun:"table:clients"`

	ID           string    `bun:"id,pk" json:"id" yaml:"id"`
	InstructorID string    `bun:"instructor_id,notnull" json:"instructorId" yaml:"instructorId"`
	FirstName    string    `bun:"first_name,notnull" json:"firstName" yaml:"firstName"`
	LastName     string    `bun:"last_name,notnull" json:"lastName" yaml:"lastName"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"-" yaml:"-"`
}

func (c *Client) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		return stampNew(&c.ID, &c.CreatedAt)
	}
	return nil
}

func (c Client) DisplayName() string {
	return displayName(c.FirstName, c.LastName)
}

type Method string

const (
	MethodWeekly  Method = "weekly"
	MethodMonthly Method = "monthly"
	MethodOnce    Method = "once"
)

func (m Method) Valid() bool {
	switch m {
	case MethodWeekly, MethodMonthly, MethodOnce:
		return true
	}
	return false
}

// Booking is a persisted recurrence rule. Only the field selected by Method
// (Date, DayOfWeek or DaysOfMonth) is populated; the other two stay empty.
// Exclusions is a ';'-joined set of date-keys.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID           string    `bun:"id,pk" json:"id" yaml:"id"`
	InstructorID string    `bun:"instructor_id,notnull" json:"instructorId" yaml:"instructorId"`
	ClientID     string    `bun:"client_id,notnull" json:"clientId" yaml:"clientId"`
	Method       Method    `bun:"method,notnull" json:"method" yaml:"method"`
	Time         string    `bun:"time,notnull" json:"time" yaml:"time"`
	Date         string    `bun:"date,notnull" json:"date" yaml:"date"`
	DayOfWeek    string    `bun:"day_of_week,notnull" json:"dayOfWeek" yaml:"dayOfWeek"`
	DaysOfMonth  string    `bun:"days_of_month,notnull" json:"daysOfMonth" yaml:"daysOfMonth"`
	Exclusions   string    `bun:"exclusions,notnull" json:"exclusions" yaml:"exclusions"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"-" yaml:"-"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		return stampNew(&b.ID, &b.CreatedAt)
	}
	return nil
}

// Snapshot is a point-in-time copy of every collection, in storage order.
type Snapshot struct {
	Instructors []Instructor `json:"instructors"`
	Clients     []Client     `json:"clients"`
	Bookings    []Booking    `json:"bookings"`
}

func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Instructors: append([]Instructor(nil), s.Instructors...),
		Clients:     append([]Client(nil), s.Clients...),
		Bookings:    append([]Booking(nil), s.Bookings...),
	}
}

func stampNew(id *string, createdAt *time.Time) error {
	if *id == "" {
		v, err := uuid.NewV7()
		if err != nil {
			return err
		}
		*id = v.String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
	return nil
}

func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// NormalizeName trims s and collapses inner runs of whitespace to one space.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
