package tasks

import "strings"

// FilterTasks keeps the tasks matching both the status and the
// case-insensitive search text, preserving input order. An unrecognised
// status keeps everything.
func FilterTasks(list []Task, f Filter) []Task {
	needle := strings.ToLower(f.Search)

	out := make([]Task, 0, len(list))
	for _, t := range list {
		switch f.Status {
		case StatusActive:
			if t.Done {
				continue
			}
		case StatusDone:
			if !t.Done {
				continue
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Text), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}
