package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/pkg/models"
)

type fakeTracker struct {
	existing   map[string]bool
	listErr    error
	failFor    string
	created    []string
	nextNumber int
}

func (f *fakeTracker) Name() string { return "fake" }

func (f *fakeTracker) Existing(context.Context) (map[string]bool, error) {
	return f.existing, f.listErr
}

func (f *fakeTracker) Create(_ context.Context, todo models.Todo, fingerprint string) (string, error) {
	if todo.Content == f.failFor {
		return "", errors.New("rejected")
	}
	f.nextNumber++
	f.created = append(f.created, fingerprint)
	return fmt.Sprintf("FAKE-%d", f.nextNumber), nil
}

func todos() []models.Todo {
	return []models.Todo{
		{FilePath: "a.go", LineNumber: 3, Content: "handle timeouts", Priority: models.PriorityHigh},
		{FilePath: "a.go", LineNumber: 9, Content: "drop legacy flag", Priority: models.PriorityLow},
		{FilePath: "b.go", LineNumber: 1, Content: "handle timeouts", Priority: models.PriorityNormal},
	}
}

func TestFingerprint(t *testing.T) {
	base := models.Todo{FilePath: "a.go", LineNumber: 3, Content: "handle timeouts"}

	moved := base
	moved.LineNumber = 40
	assert.Equal(t, Fingerprint(base), Fingerprint(moved), "line moves keep the fingerprint")

	otherFile := base
	otherFile.FilePath = "b.go"
	assert.NotEqual(t, Fingerprint(base), Fingerprint(otherFile))

	edited := base
	edited.Content = "handle timeouts properly"
	assert.NotEqual(t, Fingerprint(base), Fingerprint(edited))

	assert.Len(t, Fingerprint(base), 36)
}

func TestFingerprintIgnoresRootSpelling(t *testing.T) {
	testCases := []struct {
		name    string
		gitRoot bool
		chdir   string
		rel     string
	}{
		{"inside repository from subdirectory", true, "src", "a.py"},
		{"inside repository from root", true, ".", "src/a.py"},
		{"outside repository", false, ".", "./src/a.py"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
			abs := filepath.Join(root, "src", "a.py")
			require.NoError(t, os.WriteFile(abs, []byte("# TODO: tidy\n"), 0o644))
			if tc.gitRoot {
				require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
			}
			t.Chdir(filepath.Join(root, tc.chdir))

			fromAbs := models.Todo{FilePath: abs, LineNumber: 1, Content: "tidy"}
			fromRel := models.Todo{FilePath: tc.rel, LineNumber: 1, Content: "tidy"}

			assert.Equal(t, "src/a.py", CanonicalPath(abs))
			assert.Equal(t, "src/a.py", CanonicalPath(tc.rel))
			assert.Equal(t, Fingerprint(fromAbs), Fingerprint(fromRel))
		})
	}
}

func TestCanonicalPathOutsideWorkingDirectory(t *testing.T) {
	elsewhere := t.TempDir()
	t.Chdir(t.TempDir())

	path := filepath.Join(elsewhere, "a.py")
	got := CanonicalPath(path)
	assert.True(t, filepath.IsAbs(filepath.FromSlash(got)), "got %s", got)
	assert.True(t, strings.HasSuffix(got, "/a.py"))
}

func TestParseFingerprints(t *testing.T) {
	fp := Fingerprint(todos()[0])
	body := Body(todos()[0], fp)

	assert.Equal(t, []string{fp}, ParseFingerprints(body))
	assert.Equal(t, []string{fp}, ParseFingerprints("x\n"+Marker(strings.ToUpper(fp))))
	assert.Empty(t, ParseFingerprints("no marker here"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "[HIGH] handle timeouts", Title(todos()[0]))

	long := models.Todo{Content: strings.Repeat("x", 100), Priority: models.PriorityNormal}
	title := Title(long)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.Equal(t, len("[NORMAL] ")+80, len(title))

	empty := models.Todo{FilePath: "c.go", LineNumber: 2, Priority: models.PriorityMedium}
	assert.Equal(t, "[MEDIUM] c.go:2", Title(empty))
}

func TestBody(t *testing.T) {
	todo := models.Todo{
		FilePath:   "a.go",
		LineNumber: 3,
		Content:    "handle timeouts",
		Priority:   models.PriorityHigh,
		AssignedTo: "bob",
		Context:    "// TODO(bob): handle timeouts",
		Analysis: &models.Analysis{
			Complexity:             models.ComplexityModerate,
			EstimatedHours:         5,
			ImplementationApproach: "wrap calls in context.WithTimeout",
		},
	}

	body := Body(todo, "fp")
	assert.Contains(t, body, "- **Location:** `a.go:3`")
	assert.Contains(t, body, "- **Assigned to:** @bob")
	assert.Contains(t, body, "- **Complexity:** moderate (about 5.0 hours)")
	assert.Contains(t, body, "- **Approach:** wrap calls in context.WithTimeout")
	assert.Contains(t, body, "```\n// TODO(bob): handle timeouts\n```")
	assert.True(t, strings.HasSuffix(body, Marker("fp")+"\n"))
}

func TestBodyContextContainingFence(t *testing.T) {
	todo := models.Todo{
		FilePath: "README.md",
		Content:  "a",
		Priority: models.PriorityNormal,
		Context:  "```go\n<!-- TODO: a -->\n```",
	}

	body := Body(todo, "fp")
	assert.Contains(t, body, "````\n```go\n<!-- TODO: a -->\n```\n````\n")
}

func TestRunLogsWithTrackerName(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupLogger(&buf, logging.LevelInfo)
	t.Cleanup(func() { logging.SetupLogger(os.Stderr, logging.LevelWarn) })

	_, err := Run(context.Background(), &fakeTracker{existing: map[string]bool{}}, todos()[:1], true)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "would create issue")
	assert.Contains(t, out, "tracker=fake")
	assert.Contains(t, out, "dry_run=true")
}

func TestRun(t *testing.T) {
	all := todos()
	tracker := &fakeTracker{existing: map[string]bool{Fingerprint(all[1]): true}}

	result, err := Run(context.Background(), tracker, all, false)
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	assert.Equal(t, "FAKE-1", result.Created[0].Key)
	assert.Equal(t, "a.go:3", result.Created[0].Todo.Location())
	assert.Equal(t, "FAKE-2", result.Created[1].Key)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	filed := map[string]bool{Fingerprint(all[1]): true}
	for _, fp := range tracker.created {
		filed[fp] = true
	}
	again, err := Run(context.Background(), &fakeTracker{existing: filed}, all, false)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 3, again.Skipped)
}

func TestRunDuplicatesInOneScan(t *testing.T) {
	dup := todos()[0]
	dup.LineNumber = 99

	tracker := &fakeTracker{}
	result, err := Run(context.Background(), tracker, []models.Todo{todos()[0], dup}, false)
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunDryRun(t *testing.T) {
	tracker := &fakeTracker{}
	result, err := Run(context.Background(), tracker, todos(), true)
	require.NoError(t, err)

	assert.Len(t, result.Created, 3)
	assert.Empty(t, tracker.created)
	for _, f := range result.Created {
		assert.Empty(t, f.Key)
		assert.NotEmpty(t, f.Fingerprint)
	}
}

func TestRunFailures(t *testing.T) {
	tracker := &fakeTracker{failFor: "drop legacy flag"}
	result, err := Run(context.Background(), tracker, todos(), false)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Equal(t, 1, result.Failed)
}

func TestRunListError(t *testing.T) {
	_, err := Run(context.Background(), &fakeTracker{listErr: errors.New("unauthorized")}, todos(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Contains(t, err.Error(), "fake")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tracker := &fakeTracker{}
	_, err := Run(ctx, tracker, todos(), false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tracker.created)
}
