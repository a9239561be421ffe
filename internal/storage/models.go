package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// State names the resolution state of a question.
type State string

const (
	StatePending  State = "pending"
	StateAnswered State = "answered"
	StateFailed   State = "failed"
)

// Outcome is the resolution of a generation attempt. A question is pending
// until exactly one of answer or error is set; the variant makes it
// impossible to hold both at once.
type Outcome struct {
	state State
	text  string
}

// Pending returns the unresolved outcome.
func Pending() Outcome {
	return Outcome{state: StatePending}
}

// Answered returns an outcome carrying the generated answer text.
func Answered(text string) Outcome {
	return Outcome{state: StateAnswered, text: text}
}

// Failed returns an outcome carrying the generation error message.
func Failed(message string) Outcome {
	return Outcome{state: StateFailed, text: message}
}

func (o Outcome) State() State {
	if o.state == "" {
		return StatePending
	}
	return o.state
}

// Answer returns the answer text and whether the outcome is answered.
func (o Outcome) Answer() (string, bool) {
	return o.text, o.State() == StateAnswered
}

// Err returns the error message and whether the outcome is failed.
func (o Outcome) Err() (string, bool) {
	return o.text, o.State() == StateFailed
}

// Question is a stored question record. IDs are assigned by the store,
// ascending and never reused. CreatedAt is set once at creation.
type Question struct {
	ID        int64
	Text      string
	Outcome   Outcome
	UserID    *int64
	CreatedAt time.Time
}

// questionJSON is the wire shape of a record: nullable answer and error,
// at most one of them non-null.
type questionJSON struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    *string   `json:"answer"`
	Error     *string   `json:"error"`
	UserID    *int64    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	out := questionJSON{
		ID:        q.ID,
		Question:  q.Text,
		UserID:    q.UserID,
		CreatedAt: q.CreatedAt,
	}
	if a, ok := q.Outcome.Answer(); ok {
		out.Answer = &a
	}
	if e, ok := q.Outcome.Err(); ok {
		out.Error = &e
	}
	return json.Marshal(out)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var in questionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	q.ID = in.ID
	q.Text = in.Question
	q.UserID = in.UserID
	q.CreatedAt = in.CreatedAt
	switch {
	case in.Answer != nil:
		q.Outcome = Answered(*in.Answer)
	case in.Error != nil:
		q.Outcome = Failed(*in.Error)
	default:
		q.Outcome = Pending()
	}
	return nil
}

// Store is the question collection. Records are keyed by id; list order is
// newest-first by creation time, ties broken by descending id.
type Store interface {
	// Create assigns the next id, stamps the current time, and stores the
	// question in the pending state.
	Create(text string, userID *int64) (Question, error)

	// Get returns the record or ErrNotFound.
	Get(id int64) (Question, error)

	// ListByUser returns every record owned by userID, newest first.
	ListByUser(userID int64) ([]Question, error)

	// ListRecent returns up to limit records across all users, newest first.
	ListRecent(limit int) ([]Question, error)

	// SetOutcome replaces the record's outcome, leaving id, question text,
	// and creation time untouched. Returns ErrNotFound for unknown ids.
	SetOutcome(id int64, o Outcome) (Question, error)

	// Delete removes the record, reporting whether it existed.
	Delete(id int64) (bool, error)

	// DeleteByUser removes every record owned by userID. Removing zero
	// records is not an error.
	DeleteByUser(userID int64) error

	Close() error
}
