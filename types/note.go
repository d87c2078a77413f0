package types

import "time"

// ModeratorNote is an append-only annotation left on a report by a
// moderator or admin.
type ModeratorNote struct {
	// ID is the unique identifier of the note.
	ID int `json:"id" db:"id"`

	// ReportID is the report the note belongs to.
	ReportID int `json:"report_id" db:"report_id"`

	// ModeratorID identifies the author.
	ModeratorID int `json:"moderator_id" db:"moderator_id"`

	// Text is the note body.
	Text string `json:"note" db:"note"`

	// CreatedAt is the timestamp when the note was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Moderator is the author's identity, when loaded.
	Moderator *UserSummary `json:"moderator,omitempty" db:"-"`
}
