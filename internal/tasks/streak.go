package tasks

import "time"

type day struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) day {
	y, m, d := t.Date()
	return day{y, m, d}
}

// ComputeStreak counts consecutive calendar days, ending on now's day, with at
// least one completed task. Days are taken in now's location.
func ComputeStreak(list []Task, now time.Time) int {
	loc := now.Location()

	days := make(map[day]struct{})
	for _, t := range list {
		if !t.Done || t.CompletedAt == nil {
			continue
		}
		days[dayOf(time.UnixMilli(*t.CompletedAt).In(loc))] = struct{}{}
	}
	if len(days) == 0 {
		return 0
	}

	// noon keeps AddDate clear of DST transitions
	y, m, d := now.Date()
	cur := time.Date(y, m, d, 12, 0, 0, 0, loc)

	count := 0
	for {
		if _, ok := days[dayOf(cur)]; !ok {
			return count
		}
		count++
		cur = cur.AddDate(0, 0, -1)
	}
}

// Profile holds the numbers shown on the profile screen.
type Profile struct {
	Total  int `json:"total"`
	Done   int `json:"done"`
	Streak int `json:"streak"`
}

func Summarize(list []Task, now time.Time) Profile {
	p := Profile{Total: len(list), Streak: ComputeStreak(list, now)}
	for _, t := range list {
		if t.Done {
			p.Done++
		}
	}
	return p
}
