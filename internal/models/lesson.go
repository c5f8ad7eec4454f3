package models

import "time"

// LessonLocation enumerates how a lesson is delivered.
type LessonLocation string

const (
	LocationOnline   LessonLocation = "ONLINE"
	LocationInPerson LessonLocation = "IN_PERSON"
	LocationHybrid   LessonLocation = "HYBRID"
)

// Lesson is a teaching offering owned by exactly one teacher. Cancellation
// is a soft delete: a cancelled lesson stays queryable by id and teacher
// but is excluded from the active listing.
type Lesson struct {
	ID              string         `db:"id" json:"id"`
	TeacherID       string         `db:"teacher_id" json:"teacher_id"`
	Title           string         `db:"title" json:"title"`
	Instrument      string         `db:"instrument" json:"instrument"`
	Description     string         `db:"description" json:"description,omitempty"`
	ImageURL        *string        `db:"image_url" json:"image_url,omitempty"`
	Location        LessonLocation `db:"location" json:"location"`
	StartTime       *time.Time     `db:"start_time" json:"start_time,omitempty"`
	EndTime         *time.Time     `db:"end_time" json:"end_time,omitempty"`
	StartDate       *time.Time     `db:"start_date" json:"start_date,omitempty"`
	EndDate         *time.Time     `db:"end_date" json:"end_date,omitempty"`
	MeetingLink     string         `db:"meeting_link" json:"meeting_link,omitempty"`
	PhysicalAddress string         `db:"physical_address" json:"physical_address,omitempty"`
	Cancelled       bool           `db:"cancelled" json:"cancelled"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}
