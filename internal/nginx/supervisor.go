// Package nginx is the Nginx Supervisor: the only package that invokes the
// nginx binary, scrapes its stub-status page, and reads its process/network
// statistics from procfs. Every platform-specific reader degrades to
// zero-valued fields on a missing file rather than returning an error.
package nginx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const invokeTimeout = 5 * time.Second

// Supervisor wraps the configured nginx binary path.
type Supervisor struct {
	BinPath string
}

// New returns a Supervisor invoking binPath (e.g. "/usr/sbin/nginx").
func New(binPath string) *Supervisor {
	return &Supervisor{BinPath: binPath}
}

// Result carries the combined stdout+stderr of an invocation alongside
// whether it succeeded, so callers can surface nginx's own diagnostic text
// even on success.
type Result struct {
	OK     bool
	Output string
}

func (s *Supervisor) run(ctx context.Context, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.BinPath, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := buf.String()
	if err != nil {
		return Result{OK: false, Output: out}, fmt.Errorf("nginx %v: %w", args, err)
	}
	return Result{OK: true, Output: out}, nil
}

// Validate runs "nginx -t". A nonzero exit is an error; stdout/stderr is
// always returned so the Orchestrator can surface nginx's diagnostic text
// on rollback.
func (s *Supervisor) Validate(ctx context.Context) (Result, error) {
	return s.run(ctx, "-t")
}

// Reload runs "nginx -s reload". Its failure is reported as a warning by
// the Orchestrator, not rolled back — the filesystem already reflects the
// new desired state.
func (s *Supervisor) Reload(ctx context.Context) (Result, error) {
	return s.run(ctx, "-s", "reload")
}

// Version runs "nginx -v".
func (s *Supervisor) Version(ctx context.Context) (Result, error) {
	return s.run(ctx, "-v")
}

// Status aggregates Validate and Version into one record.
type Status struct {
	ConfigOK bool
	Version  string
}

func (s *Supervisor) StatusCheck(ctx context.Context) Status {
	validate, _ := s.Validate(ctx)
	version, _ := s.Version(ctx)
	return Status{ConfigOK: validate.OK, Version: version.Output}
}
