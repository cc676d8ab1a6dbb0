// Package job implements the exclusive job engine: a slot that admits at
// most one job at a time, and a runner that executes the job's command,
// streams its combined output through the console feed, and announces any
// result artifact.
package job

import (
	"github.com/google/uuid"
)

// Job is one request to execute a single external command to completion.
// It is created at request acceptance, consumed entirely by one runner
// invocation, and discarded afterwards. Not retried, not queued.
type Job struct {
	// ID identifies the job in logs. It never reaches observers - with a
	// single slot there is nothing for them to correlate against.
	ID string

	// Command is the argv-style command and arguments. Immutable once
	// constructed.
	Command []string

	// Stdin is fed to the child's input stream and then closed.
	// Nil means the child's stdin stays empty.
	Stdin []byte

	// Welcome is announced on the console before execution starts.
	Welcome string

	// ArtifactPath, when set, names a file expected to exist after a
	// successful run. If present at completion its availability is
	// announced and its deletion scheduled.
	ArtifactPath string
}

// New creates a job for the given command. Optional fields are set
// directly on the returned value before submission.
func New(command []string) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Command: command,
	}
}
