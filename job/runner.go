package job

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caosdev/printdesk/errors"
	"github.com/caosdev/printdesk/feed"
)

// outputChunkSize bounds each read from the merged output pipe. Chunks are
// not line-buffered; a chunk may cut a multi-byte rune, which the lenient
// decoder carries over to the next chunk.
const outputChunkSize = 4096

// DefaultReclaimDelay gives observers time to download an artifact before
// it is removed.
const DefaultReclaimDelay = 30 * time.Second

// Publisher is the runner's view of the console feed.
type Publisher interface {
	Publish(ev feed.Event) int
}

// Reclaimer schedules deferred deletion of artifact files.
type Reclaimer interface {
	Schedule(path string, delay time.Duration)
}

// RunnerConfig carries the runner's caller-supplied parameters.
type RunnerConfig struct {
	// ReclaimDelay is how long an announced artifact survives before
	// deletion. Zero means DefaultReclaimDelay.
	ReclaimDelay time.Duration

	// ArtifactRoute is the URL path prefix that turns an artifact file
	// name into the locator carried by the ArtifactReady event.
	ArtifactRoute string
}

// Runner owns the child-process lifecycle for one job at a time: it starts
// the process, feeds its stdin, streams its merged stdout+stderr through
// the feed, reports the exit status, announces any artifact, and releases
// the slot.
type Runner struct {
	slot          *Slot
	feed          Publisher
	reclaimer     Reclaimer
	reclaimDelay  time.Duration
	artifactRoute string
	logger        *zap.SugaredLogger
	wg            sync.WaitGroup
}

// NewRunner creates a runner publishing to pub and handing artifacts to rec.
func NewRunner(pub Publisher, rec Reclaimer, cfg RunnerConfig, logger *zap.SugaredLogger) *Runner {
	if cfg.ReclaimDelay <= 0 {
		cfg.ReclaimDelay = DefaultReclaimDelay
	}
	if cfg.ArtifactRoute == "" {
		cfg.ArtifactRoute = "/artifacts/"
	}
	return &Runner{
		slot:          NewSlot(),
		feed:          pub,
		reclaimer:     rec,
		reclaimDelay:  cfg.ReclaimDelay,
		artifactRoute: cfg.ArtifactRoute,
		logger:        logger,
	}
}

// Submit accepts j for execution and returns immediately; the job runs on a
// background goroutine. Returns errors.ErrBusy when another job holds the
// slot. Busy submissions are rejected, never queued.
func (r *Runner) Submit(j *Job) error {
	if len(j.Command) == 0 {
		return errors.New("job has no command")
	}

	if !r.slot.TryAcquire(j) {
		return errors.ErrBusy
	}

	r.wg.Add(1)
	go r.run(j)
	return nil
}

// Busy reports whether a job currently holds the slot.
func (r *Runner) Busy() bool {
	return r.slot.Active() != nil
}

// Wait blocks until all accepted jobs have finished. Used by tests and
// shutdown paths.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// run executes one accepted job to completion. The slot release is
// deferred so it happens on every exit path - a panic mid-stream must never
// wedge the system into "busy" forever.
func (r *Runner) run(j *Job) {
	defer r.wg.Done()
	defer r.slot.Release()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorw("Job runner panicked",
				"job_id", j.ID,
				"panic", p,
			)
		}
	}()

	r.feed.Publish(feed.Clear())
	if j.Welcome != "" {
		r.feed.Publish(feed.Output(fmt.Sprintf("[%s]\n", j.Welcome)))
	}

	cmd := exec.Command(j.Command[0], j.Command[1:]...)

	// One pipe carries both stdout and stderr so their interleaving
	// reflects real time order, as far as pipe semantics allow.
	outRead, outWrite, err := os.Pipe()
	if err != nil {
		r.feed.Publish(feed.Output(fmt.Sprintf("Failed to start command: %v\n", err)))
		r.logger.Errorw("Failed to create output pipe", "job_id", j.ID, "error", err)
		return
	}
	cmd.Stdout = outWrite
	cmd.Stderr = outWrite

	var stdin io.WriteCloser
	if j.Stdin != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			outRead.Close()
			outWrite.Close()
			r.feed.Publish(feed.Output(fmt.Sprintf("Failed to start command: %v\n", err)))
			r.logger.Errorw("Failed to create stdin pipe", "job_id", j.ID, "error", err)
			return
		}
	}

	r.logger.Infow("Starting job",
		"job_id", j.ID,
		"command", j.Command[0],
		"args", len(j.Command)-1,
		"stdin_bytes", len(j.Stdin),
	)

	if err := cmd.Start(); err != nil {
		outRead.Close()
		outWrite.Close()
		r.feed.Publish(feed.Output(fmt.Sprintf("Failed to start command: %v\n", err)))
		r.logger.Warnw("Job failed to start",
			"job_id", j.ID,
			"command", j.Command[0],
			"error", err,
		)
		return
	}

	// The child holds its own copy of the write end now. Drop ours, or the
	// drain loop below never sees EOF.
	outWrite.Close()

	if stdin != nil {
		payload := j.Stdin
		go func() {
			if _, err := stdin.Write(payload); err != nil {
				r.feed.Publish(feed.Output(fmt.Sprintf("[error writing to stdin: %v]\n", err)))
				r.logger.Warnw("Stdin write failed", "job_id", j.ID, "error", err)
			}
			stdin.Close()
		}()
	}

	r.drainOutput(outRead)

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			r.logger.Warnw("Process wait failed", "job_id", j.ID, "error", err)
		}
	}

	r.feed.Publish(feed.Output(fmt.Sprintf("\n[process exited with code %d]\n", exitCode)))
	r.logger.Infow("Job finished",
		"job_id", j.ID,
		"exit_code", exitCode,
	)

	r.announceArtifact(j)
}

// drainOutput reads the merged output stream in bounded chunks until it
// closes, publishing one Output event per decoded chunk.
func (r *Runner) drainOutput(outRead *os.File) {
	defer outRead.Close()

	dec := &lenientDecoder{}
	buf := make([]byte, outputChunkSize)
	for {
		n, err := outRead.Read(buf)
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				r.feed.Publish(feed.Output(text))
			}
		}
		if err != nil {
			break
		}
	}

	if tail := dec.Flush(); tail != "" {
		r.feed.Publish(feed.Output(tail))
	}
}

// announceArtifact checks for the job's artifact exactly once, immediately
// after process exit. A missing artifact skips both the announcement and
// the reclaim, with no error emitted.
func (r *Runner) announceArtifact(j *Job) {
	if j.ArtifactPath == "" {
		return
	}

	if _, err := os.Stat(j.ArtifactPath); err != nil {
		r.logger.Debugw("No artifact produced",
			"job_id", j.ID,
			"path", j.ArtifactPath,
		)
		return
	}

	locator := path.Join(r.artifactRoute, filepath.Base(j.ArtifactPath))
	r.feed.Publish(feed.ArtifactReady(locator))
	r.logger.Infow("Artifact ready",
		"job_id", j.ID,
		"path", j.ArtifactPath,
		"locator", locator,
	)

	r.reclaimer.Schedule(j.ArtifactPath, r.reclaimDelay)
}
