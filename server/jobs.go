package server

import (
	"fmt"
	"path/filepath"

	"github.com/caosdev/printdesk/job"
)

// scanJob builds the configured scan command. The artifact path is where the
// scanner backend is expected to drop its output; the runner checks it after
// the process exits.
func (s *Server) scanJob() (*job.Job, error) {
	cmd, err := s.cfg.ScanCommand()
	if err != nil {
		return nil, err
	}
	j := job.New(cmd)
	j.Welcome = s.cfg.Scan.Welcome
	if s.cfg.Scan.Artifact != "" {
		j.ArtifactPath = filepath.Join(s.cfg.Artifact.Dir, s.cfg.Scan.Artifact)
	}
	return j, nil
}

// printJob builds the configured print command with the document bytes as
// stdin payload.
func (s *Server) printJob(content []byte) (*job.Job, error) {
	cmd, err := s.cfg.PrintCommand()
	if err != nil {
		return nil, err
	}
	j := job.New(cmd)
	j.Stdin = content
	j.Welcome = fmt.Sprintf("%s (%d bytes)", s.cfg.Print.Welcome, len(content))
	return j, nil
}
