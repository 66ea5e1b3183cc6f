package meetings

import (
	"errors"
	"time"

	"v1tr0-backend/internal/schedule"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	DefaultMeetingType = "consultation"
	MaxDuration        = 240
)

const (
	ReasonPassed       = "already passed"
	ReasonOccupied     = "slot occupied"
	ReasonOutsideHours = "outside business hours"
)

var (
	ErrNotFound  = errors.New("meeting not found")
	ErrSlotTaken = errors.New("slot already booked")
)

// Booking is a meeting on a given date in the business timezone.
type Booking struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	Date          string    `bson:"date" json:"date"`
	Time          string    `bson:"time" json:"time"`
	Duration      int       `bson:"duration" json:"duration"`
	Status        string    `bson:"status" json:"status"`
	ClientID      string    `bson:"clientId" json:"clientId"`
	ClientName    string    `bson:"clientName" json:"clientName"`
	ClientEmail   string    `bson:"clientEmail" json:"clientEmail"`
	ClientPhone   string    `bson:"clientPhone,omitempty" json:"clientPhone,omitempty"`
	ClientCompany string    `bson:"clientCompany,omitempty" json:"clientCompany,omitempty"`
	MeetingType   string    `bson:"meetingType" json:"meetingType"`
	ProjectID     string    `bson:"projectId,omitempty" json:"projectId,omitempty"`
	Title         string    `bson:"title,omitempty" json:"title,omitempty"`
	Notes         string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (b Booking) Active() bool {
	return b.Status == StatusScheduled
}

// Interval returns [time, time+duration) in minutes; a zero duration
// counts as one slot.
func (b Booking) Interval() (schedule.Interval, error) {
	start, err := schedule.TimeToMinutes(b.Time)
	if err != nil {
		return schedule.Interval{}, err
	}
	duration := b.Duration
	if duration <= 0 {
		duration = schedule.SlotMinutes
	}
	return schedule.Interval{Start: start, End: start + duration}, nil
}

// Slot is the derived state of one canonical slot.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Occupied  bool   `json:"occupied"`
	Passed    bool   `json:"passed"`
}

type DayAvailability struct {
	Date     string `json:"date"`
	Slots    []Slot `json:"slots"`
	Fallback bool   `json:"fallback"`
}

// Decision is the answer to "can a meeting start here".
type Decision struct {
	CanSchedule bool   `json:"canSchedule"`
	Reason      string `json:"reason,omitempty"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// SlotRequest identifies the range a booking wants. ExcludeID names a
// booking to ignore, used when moving it.
type SlotRequest struct {
	Date      string
	Time      string
	Duration  int
	ExcludeID string
}

// ListFilter selects bookings. A zero Limit returns every match.
type ListFilter struct {
	Date     string
	Status   string
	ClientID string
	Limit    int64
	Offset   int64
}

type ValidationError struct {
	Message string
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Message: "validation error", Details: map[string]string{field: reason}}
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "scheduling conflict: " + e.Reason
}
