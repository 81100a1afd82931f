package tasks

import (
	"errors"
	"strings"
	"time"
)

// DefaultCategory is always part of the category registry.
const DefaultCategory = "General"

// Task is the persisted record. Timestamps are milliseconds since the epoch;
// CompletedAt is non-nil exactly when Done is true.
type Task struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Category    string `json:"category"`
	CreatedAt   int64  `json:"createdAt"`
	Done        bool   `json:"done"`
	CompletedAt *int64 `json:"completedAt"`
}

func (t Task) Created() time.Time { return time.UnixMilli(t.CreatedAt) }

// Completed returns the completion time, or the zero time for a pending task.
func (t Task) Completed() time.Time {
	if t.CompletedAt == nil {
		return time.Time{}
	}
	return time.UnixMilli(*t.CompletedAt)
}

type Status string

const (
	StatusAll    Status = "All"
	StatusActive Status = "Active"
	StatusDone   Status = "Done"
)

var ErrUnknownStatus = errors.New("unknown status")

// ParseStatus accepts All, Active and Done in any case. Empty means All.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusAll, nil
	case "active":
		return StatusActive, nil
	case "done":
		return StatusDone, nil
	}
	return "", ErrUnknownStatus
}

type Filter struct {
	Status Status
	Search string
}

// AddResult carries the created task together with the category registry
// as it stands after the add.
type AddResult struct {
	Task          Task     `json:"task"`
	CategoryAdded bool     `json:"category_added"`
	Categories    []string `json:"categories"`
}
