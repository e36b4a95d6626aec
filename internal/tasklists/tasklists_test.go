package tasklists

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-github/v60/github"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
)

func TestParse(t *testing.T) {
	body := "## Checklist\r\n\r\n" +
		"- [x] Write tests\r\n" +
		"- [ ] Update docs\r\n" +
		"- [X] Bump `version`\r\n" +
		"- plain item\r\n" +
		"- [ ]\r\n" +
		"\r\n" +
		"1. [ ] numbered\r\n" +
		"   - [x] nested\r\n"

	tasks := Parse(body)

	assert.Equal(t, []Task{
		{Name: "Write tests", Completed: true},
		{Name: "Update docs", Completed: false},
		{Name: "Bump version", Completed: true},
		{Name: "numbered", Completed: false},
		{Name: "nested", Completed: true},
	}, tasks)
}

func TestParse_NoTasks(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("Just a description.\n\n[x] not in a list\n"))
}

func TestReconcile_Summary(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  Status
	}{
		{name: "no tasks", tasks: nil, want: Status{Context: "Tasklists: Completed", State: "success", Description: "No tasks"}},
		{name: "all done", tasks: []Task{{Name: "a", Completed: true}}, want: Status{Context: "Tasklists: Completed", State: "success", Description: "1 of 1 tasks"}},
		{name: "partial", tasks: []Task{{Name: "a", Completed: true}, {Name: "b"}}, want: Status{Context: "Tasklists: Completed", State: "pending", Description: "1 of 2 tasks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statuses := Reconcile([]string{"Tasklists Task: a"}, tt.tasks, false)
			assert.Equal(t, []Status{tt.want}, statuses)
		})
	}
}

func TestReconcile_ReportTasks(t *testing.T) {
	existing := []string{
		"Tasklists Task: Write tests",
		"Tasklists Task: Old item",
		"Tasklists Task: Old item",
		"Tasklists: Completed",
		"ci/build",
	}
	tasks := []Task{{Name: "Write tests", Completed: true}, {Name: "Update docs"}}

	statuses := Reconcile(existing, tasks, true)

	assert.Equal(t, []Status{
		{Context: "Tasklists Task: Write tests", State: "success"},
		{Context: "Tasklists Task: Update docs", State: "pending"},
		{Context: "Tasklists Task: Old item", State: "error", Description: "Removed"},
		{Context: "Tasklists: Completed", State: "pending", Description: "1 of 2 tasks"},
	}, statuses)
}

func TestFromEvent(t *testing.T) {
	_, _, ok := FromEvent(&ci.EventPayload{})
	assert.False(t, ok)
	_, _, ok = FromEvent(nil)
	assert.False(t, ok)

	payload := &ci.EventPayload{PullRequest: &ci.PullRequest{Body: "- [ ] a"}, Repository: &ci.Repository{Name: "repo"}}
	payload.PullRequest.Head.SHA = "abc123"
	payload.Repository.Owner.Login = "owner"

	target, body, ok := FromEvent(payload)
	require.True(t, ok)
	assert.Equal(t, Target{Owner: "owner", Repo: "repo", SHA: "abc123"}, target)
	assert.Equal(t, "- [ ] a", body)
}

// mockStatusClient records created statuses
type mockStatusClient struct {
	mu       sync.Mutex
	existing []string
	created  []Status
	listErr  error
	failOn   string
	listed   bool
}

func (m *mockStatusClient) ListStatusContexts(ctx context.Context, owner, repo, ref string) ([]string, error) {
	m.listed = true
	return m.existing, m.listErr
}

func (m *mockStatusClient) CreateStatus(ctx context.Context, owner, repo, ref string, status Status) error {
	if status.Context == m.failOn {
		return errors.New("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, status)
	return nil
}

func sortedContexts(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.Context)
	}
	sort.Strings(out)
	return out
}

func TestReporter_Report(t *testing.T) {
	client := &mockStatusClient{existing: []string{"Tasklists Task: gone"}}
	metrics := observability.NewMetrics("test_tasklists")
	r := NewReporter(client, metrics, zerolog.Nop())

	statuses, err := r.Report(context.Background(), Target{Owner: "o", Repo: "r", SHA: "s"}, "- [x] one\n- [ ] two\n", true)
	require.NoError(t, err)

	assert.True(t, client.listed)
	assert.Len(t, statuses, 4)
	assert.Equal(t, sortedContexts(statuses), sortedContexts(client.created))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TaskStatusesTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TaskStatusesTotal.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TaskStatusesTotal.WithLabelValues("error")))
}

func TestReporter_SummaryOnly(t *testing.T) {
	client := &mockStatusClient{}
	r := NewReporter(client, nil, zerolog.Nop())

	statuses, err := r.Report(context.Background(), Target{}, "- [x] one\n", false)
	require.NoError(t, err)

	assert.False(t, client.listed)
	assert.Equal(t, []Status{{Context: "Tasklists: Completed", State: "success", Description: "1 of 1 tasks"}}, statuses)
	assert.Equal(t, statuses, client.created)
}

func TestReporter_Errors(t *testing.T) {
	r := NewReporter(&mockStatusClient{listErr: errors.New("forbidden")}, nil, zerolog.Nop())
	_, err := r.Report(context.Background(), Target{}, "", true)
	assert.ErrorContains(t, err, "failed to list statuses")

	r = NewReporter(&mockStatusClient{failOn: "Tasklists: Completed"}, nil, zerolog.Nop())
	_, err = r.Report(context.Background(), Target{}, "", false)
	assert.ErrorContains(t, err, `failed to create status "Tasklists: Completed"`)
}

func newTestGitHub(t *testing.T, handler http.Handler) *GitHubStatuses {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil).WithAuthToken("token")
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return NewGitHubStatuses(client)
}

func TestGitHubStatuses_ListPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits/abc/statuses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"context":"Tasklists Task: b"}]`)
			return
		}
		w.Header().Set("Link", `<`+"http://"+r.Host+`/repos/owner/repo/commits/abc/statuses?page=2>; rel="next"`)
		fmt.Fprint(w, `[{"context":"Tasklists Task: a"},{"context":"ci/build"}]`)
	})
	g := newTestGitHub(t, mux)

	contexts, err := g.ListStatusContexts(context.Background(), "owner", "repo", "abc")
	require.NoError(t, err)

	assert.Equal(t, []string{"Tasklists Task: a", "ci/build", "Tasklists Task: b"}, contexts)
}

func TestGitHubStatuses_CreateStatus(t *testing.T) {
	var got map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/statuses/abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{}`)
	})
	g := newTestGitHub(t, mux)

	err := g.CreateStatus(context.Background(), "owner", "repo", "abc",
		Status{Context: "Tasklists Task: gone", State: StateError, Description: "Removed"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"context":     "Tasklists Task: gone",
		"state":       "error",
		"description": "Removed",
	}, got)
}

func TestGitHubStatuses_CreateStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/statuses/abc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"Validation Failed"}`)
	})
	g := newTestGitHub(t, mux)

	err := g.CreateStatus(context.Background(), "owner", "repo", "abc", Status{Context: "x", State: "bogus"})
	assert.ErrorContains(t, err, "Validation Failed")
}
