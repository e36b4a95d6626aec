package tasklists

import (
	"fmt"
	"strings"
)

// Commit status states
const (
	StateSuccess = "success"
	StatePending = "pending"
	StateError   = "error"
)

const (
	taskContextPrefix = "Tasklists Task:"
	summaryContext    = "Tasklists: Completed"
)

// Status is a commit status to create
type Status struct {
	Context     string `json:"context" yaml:"context"`
	State       string `json:"state" yaml:"state"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// TaskContext is the status context reported for a task
func TaskContext(name string) string {
	return taskContextPrefix + " " + name
}

// Reconcile computes the statuses to create for tasks.
//
// When report is set every task gets its own status and previously reported
// task contexts that no longer match a task are marked as removed. A summary
// status is always included last.
func Reconcile(existing []string, tasks []Task, report bool) []Status {
	var (
		statuses  []Status
		dangling  []string
		remaining = make(map[string]bool)
	)

	if report {
		for _, ctx := range existing {
			if strings.HasPrefix(ctx, taskContextPrefix) && !remaining[ctx] {
				remaining[ctx] = true
				dangling = append(dangling, ctx)
			}
		}
	}

	completed := 0
	for _, task := range tasks {
		state := StatePending
		if task.Completed {
			completed++
			state = StateSuccess
		}
		if report {
			name := TaskContext(task.Name)
			delete(remaining, name)
			statuses = append(statuses, Status{Context: name, State: state})
		}
	}

	for _, ctx := range dangling {
		if remaining[ctx] {
			statuses = append(statuses, Status{Context: ctx, State: StateError, Description: "Removed"})
		}
	}

	return append(statuses, summary(completed, len(tasks)))
}

func summary(completed, total int) Status {
	s := Status{Context: summaryContext, State: StatePending}
	if completed == total {
		s.State = StateSuccess
	}
	if total == 0 {
		s.Description = "No tasks"
	} else {
		s.Description = fmt.Sprintf("%d of %d tasks", completed, total)
	}
	return s
}
