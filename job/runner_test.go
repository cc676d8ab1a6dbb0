package job

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caosdev/printdesk/errors"
	"github.com/caosdev/printdesk/feed"
)

// recordingPublisher captures every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *recordingPublisher) Publish(ev feed.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return 1
}

func (p *recordingPublisher) all() []feed.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]feed.Event(nil), p.events...)
}

// output concatenates the data of all console_output events.
func (p *recordingPublisher) output() string {
	var sb strings.Builder
	for _, ev := range p.all() {
		if ev.Kind == feed.KindOutput {
			sb.WriteString(ev.Data)
		}
	}
	return sb.String()
}

func (p *recordingPublisher) kinds() []feed.Kind {
	var kinds []feed.Kind
	for _, ev := range p.all() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// fakeReclaimer records scheduled reclaims without deleting anything.
type fakeReclaimer struct {
	mu       sync.Mutex
	paths    []string
	lastWait time.Duration
}

func (r *fakeReclaimer) Schedule(path string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	r.lastWait = delay
}

func (r *fakeReclaimer) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestRunner(cfg RunnerConfig) (*Runner, *recordingPublisher, *fakeReclaimer) {
	pub := &recordingPublisher{}
	rec := &fakeReclaimer{}
	return NewRunner(pub, rec, cfg, zap.NewNop().Sugar()), pub, rec
}

func TestRunner_StreamsOutputAndExitCode(t *testing.T) {
	r, pub, _ := newTestRunner(RunnerConfig{})

	j := New([]string{"echo", "hi"})
	j.Welcome = "Running echo"
	require.NoError(t, r.Submit(j))
	r.Wait()

	kinds := pub.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, feed.KindClear, kinds[0], "Every job starts with a console clear")

	out := pub.output()
	assert.True(t, strings.HasPrefix(out, "[Running echo]\n"), "Welcome line should open the stream, got %q", out)
	assert.Contains(t, out, "hi\n")
	assert.True(t, strings.HasSuffix(out, "\n[process exited with code 0]\n"), "Exit notice should close the stream, got %q", out)
}

func TestRunner_MergesStderrIntoStream(t *testing.T) {
	r, pub, _ := newTestRunner(RunnerConfig{})

	j := New([]string{"sh", "-c", "echo out; echo err 1>&2"})
	require.NoError(t, r.Submit(j))
	r.Wait()

	out := pub.output()
	assert.Contains(t, out, "out\n")
	assert.Contains(t, out, "err\n", "Stderr should appear in the same stream as stdout")
}

func TestRunner_NonZeroExitCodeReported(t *testing.T) {
	r, pub, _ := newTestRunner(RunnerConfig{})

	require.NoError(t, r.Submit(New([]string{"sh", "-c", "exit 3"})))
	r.Wait()

	assert.Contains(t, pub.output(), "\n[process exited with code 3]\n")
}

func TestRunner_BusyRejectsSecondJob(t *testing.T) {
	r, _, _ := newTestRunner(RunnerConfig{})

	require.NoError(t, r.Submit(New([]string{"sleep", "0.3"})))

	// The slot is held for the whole process lifetime
	assert.Eventually(t, func() bool { return r.Busy() }, time.Second, 5*time.Millisecond)

	err := r.Submit(New([]string{"echo", "rejected"}))
	require.Error(t, err)
	assert.True(t, errors.IsBusy(err), "Second submission should fail with the busy sentinel")

	r.Wait()
	assert.False(t, r.Busy(), "Slot should be free after the job finishes")

	// And accept work again
	require.NoError(t, r.Submit(New([]string{"echo", "ok"})))
	r.Wait()
}

func TestRunner_EmptyCommandRejected(t *testing.T) {
	r, _, _ := newTestRunner(RunnerConfig{})

	err := r.Submit(New(nil))
	require.Error(t, err)
	assert.False(t, errors.IsBusy(err))
	assert.False(t, r.Busy())
}

func TestRunner_SpawnFailureFreesSlot(t *testing.T) {
	r, pub, _ := newTestRunner(RunnerConfig{})

	require.NoError(t, r.Submit(New([]string{"/nonexistent/definitely-not-a-binary"})))
	r.Wait()

	out := pub.output()
	assert.Contains(t, out, "Failed to start command:")
	assert.NotContains(t, out, "[process exited", "A job that never started has no exit notice")
	assert.False(t, r.Busy(), "Spawn failure must release the slot")
}

func TestRunner_StdinPayloadDelivered(t *testing.T) {
	r, pub, _ := newTestRunner(RunnerConfig{})

	j := New([]string{"cat"})
	j.Stdin = []byte("document body\n")
	require.NoError(t, r.Submit(j))
	r.Wait()

	assert.Contains(t, pub.output(), "document body\n", "Stdin payload should round-trip through cat")
	assert.Contains(t, pub.output(), "[process exited with code 0]")
}

func TestRunner_ArtifactAnnouncedAndReclaimScheduled(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "scan.pdf")

	r, pub, rec := newTestRunner(RunnerConfig{
		ReclaimDelay:  5 * time.Second,
		ArtifactRoute: "/artifacts/",
	})

	j := New([]string{"sh", "-c", "echo content > " + artifact})
	j.ArtifactPath = artifact
	require.NoError(t, r.Submit(j))
	r.Wait()

	var ready *feed.Event
	for _, ev := range pub.all() {
		if ev.Kind == feed.KindArtifactReady {
			ready = &ev
			break
		}
	}
	require.NotNil(t, ready, "Artifact produced by the job should be announced")
	assert.Equal(t, "/artifacts/scan.pdf", ready.URL)

	assert.Equal(t, []string{artifact}, rec.scheduled(), "Announced artifact should be queued for reclaim")
	assert.Equal(t, 5*time.Second, rec.lastWait)
}

func TestRunner_MissingArtifactIsSilent(t *testing.T) {
	r, pub, rec := newTestRunner(RunnerConfig{ArtifactRoute: "/artifacts/"})

	j := New([]string{"true"})
	j.ArtifactPath = filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, r.Submit(j))
	r.Wait()

	for _, ev := range pub.all() {
		assert.NotEqual(t, feed.KindArtifactReady, ev.Kind, "Jobs that produce no artifact announce nothing")
	}
	assert.Empty(t, rec.scheduled())
}

// panickyPublisher panics on the first Output event to prove the slot
// release survives a broken observer path.
type panickyPublisher struct {
	recordingPublisher
}

func (p *panickyPublisher) Publish(ev feed.Event) int {
	if ev.Kind == feed.KindOutput {
		panic("observer wiring broke")
	}
	return p.recordingPublisher.Publish(ev)
}

func TestRunner_SlotReleasedAfterPanic(t *testing.T) {
	rec := &fakeReclaimer{}
	r := NewRunner(&panickyPublisher{}, rec, RunnerConfig{}, zap.NewNop().Sugar())

	j := New([]string{"echo", "boom"})
	j.Welcome = "trigger"
	require.NoError(t, r.Submit(j))
	r.Wait()

	assert.False(t, r.Busy(), "A panic during the job must not leave the slot held")
	require.NoError(t, r.Submit(New([]string{"true"})), "Runner should accept new jobs after recovering")
	r.Wait()
}

func TestRunner_LargeOutputArrivesIntact(t *testing.T) {
	r, pub, _ := newTestRunner(RunnerConfig{})

	// Well past one read chunk, forcing multiple Output events
	j := New([]string{"sh", "-c", "yes x | head -c 20000"})
	require.NoError(t, r.Submit(j))
	r.Wait()

	out := pub.output()
	payload := strings.TrimSuffix(out, "\n[process exited with code 0]\n")
	assert.Equal(t, 20000, len(payload), "All output bytes should arrive across chunked events")

	var outputEvents int
	for _, ev := range pub.all() {
		if ev.Kind == feed.KindOutput {
			outputEvents++
		}
	}
	assert.Greater(t, outputEvents, 1, "Large output should span multiple events")
}
