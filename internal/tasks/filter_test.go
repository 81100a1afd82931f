package tasks

import (
	"errors"
	"reflect"
	"testing"
)

func sampleList() []Task {
	done := int64(1714550400000)
	return []Task{
		{ID: "5", Text: "Pay RENT", Done: true, CompletedAt: &done},
		{ID: "4", Text: "buy groceries"},
		{ID: "3", Text: "rent a bike", Done: true, CompletedAt: &done},
		{ID: "2", Text: "call plumber"},
		{ID: "1", Text: "Groceries again"},
	}
}

func ids(list []Task) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func TestFilterTasks_Status(t *testing.T) {
	list := sampleList()

	cases := []struct {
		status Status
		want   []string
	}{
		{StatusAll, []string{"5", "4", "3", "2", "1"}},
		{StatusActive, []string{"4", "2", "1"}},
		{StatusDone, []string{"5", "3"}},
		{Status("bogus"), []string{"5", "4", "3", "2", "1"}},
	}
	for _, c := range cases {
		if got := ids(FilterTasks(list, Filter{Status: c.status})); !reflect.DeepEqual(got, c.want) {
			t.Errorf("status %q: got %v, want %v", c.status, got, c.want)
		}
	}
}

func TestFilterTasks_PartitionsAll(t *testing.T) {
	list := sampleList()
	active := FilterTasks(list, Filter{Status: StatusActive})
	done := FilterTasks(list, Filter{Status: StatusDone})

	seen := map[string]bool{}
	for _, task := range append(active, done...) {
		if seen[task.ID] {
			t.Fatalf("task %s is both active and done", task.ID)
		}
		seen[task.ID] = true
	}

	// union, put back into original order, equals All
	var union []Task
	for _, task := range list {
		if seen[task.ID] {
			union = append(union, task)
		}
	}
	if !reflect.DeepEqual(union, FilterTasks(list, Filter{Status: StatusAll})) {
		t.Fatalf("active and done do not partition all")
	}
}

func TestFilterTasks_Search(t *testing.T) {
	list := sampleList()

	if got := ids(FilterTasks(list, Filter{Search: "rent"})); !reflect.DeepEqual(got, []string{"5", "3"}) {
		t.Fatalf("case-insensitive search failed: %v", got)
	}
	if got := ids(FilterTasks(list, Filter{Status: StatusActive, Search: "GROCER"})); !reflect.DeepEqual(got, []string{"4", "1"}) {
		t.Fatalf("status and search must combine: %v", got)
	}
	if got := FilterTasks(list, Filter{Search: "nothing matches"}); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	if got := FilterTasks(list, Filter{}); len(got) != len(list) {
		t.Fatalf("empty search must match everything")
	}
}

func TestFilterTasks_DoesNotMutateInput(t *testing.T) {
	list := sampleList()
	before := ids(list)
	_ = FilterTasks(list, Filter{Status: StatusDone, Search: "x"})
	if !reflect.DeepEqual(ids(list), before) {
		t.Fatalf("input list was modified")
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{"": StatusAll, "all": StatusAll, "Active": StatusActive, " DONE ": StatusDone}
	for in, want := range cases {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStatus("archived"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
}
