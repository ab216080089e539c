package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	xlog "github.com/voyagen/matrixiptv/internal/log"
)

// cachingArgs are always passed ahead of request options.
var cachingArgs = []string{
	"--network-caching=1000",
	"--file-caching=1000",
	"--live-caching=1000",
	"--sout-mux-caching=1000",
}

// candidatePaths lists well-known VLC install locations for goos.
func candidatePaths(goos string) []string {
	switch goos {
	case "windows":
		paths := []string{
			`C:\Program Files\VideoLAN\VLC\vlc.exe`,
			`C:\Program Files (x86)\VideoLAN\VLC\vlc.exe`,
		}
		if pf := os.Getenv("PROGRAMFILES"); pf != "" {
			paths = append(paths, pf+`\VideoLAN\VLC\vlc.exe`)
		}
		return paths
	case "darwin":
		return []string{
			"/Applications/VLC.app/Contents/MacOS/VLC",
			"/Applications/VLC media player.app/Contents/MacOS/VLC",
		}
	default:
		return []string{
			"/usr/bin/vlc",
			"/usr/local/bin/vlc",
			"/snap/bin/vlc",
		}
	}
}

var lookPath = exec.LookPath

// Discover returns the VLC binary to use: explicit when it exists, then the
// well-known install paths, then "vlc" on PATH.
func Discover(explicit string) (string, bool) {
	if explicit != "" {
		if isFile(explicit) {
			return explicit, true
		}
		return "", false
	}
	for _, p := range candidatePaths(runtime.GOOS) {
		if isFile(p) {
			return p, true
		}
	}
	if p, err := lookPath("vlc"); err == nil {
		return p, true
	}
	return "", false
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// VLC runs one VLC process at a time.
type VLC struct {
	path   string
	logger zerolog.Logger

	opMu sync.Mutex // serializes Load and Stop

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewVLC resolves the binary once. explicitPath overrides discovery.
func NewVLC(explicitPath string) *VLC {
	path, _ := Discover(explicitPath)
	return &VLC{path: path, logger: xlog.WithComponent("player")}
}

// Available reports whether a binary was found.
func (v *VLC) Available() bool { return v.path != "" }

// Path returns the resolved binary, or "".
func (v *VLC) Path() string { return v.path }

// Args builds the command line for req.
func Args(req Request) []string {
	title := req.Title
	if title == "" {
		title = DefaultTitle
	}
	args := make([]string, 0, 3+len(cachingArgs)+len(req.Options))
	args = append(args, req.URL, "--meta-title", title)
	args = append(args, cachingArgs...)
	return append(args, req.Options...)
}

// Load kills any running process and starts a new one for req. The process
// outlives ctx; it ends on Stop, the next Load, or when the user closes it.
func (v *VLC) Load(ctx context.Context, req Request) error {
	if !v.Available() {
		return ErrExternalPlayerUnavailable
	}

	v.opMu.Lock()
	defer v.opMu.Unlock()
	if err := v.kill(ctx); err != nil {
		return err
	}

	cmd := exec.Command(v.path, Args(req)...) // #nosec G204 -- path comes from discovery or config
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", v.path, err)
	}
	done := make(chan struct{})
	v.mu.Lock()
	v.cmd, v.done = cmd, done
	v.mu.Unlock()

	v.logger.Info().
		Str("event", "player.started").
		Int("pid", cmd.Process.Pid).
		Str("title", req.Title).
		Msg("external player started")

	go v.reap(cmd, done)
	return nil
}

func (v *VLC) reap(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	v.logger.Info().
		Err(err).
		Str("event", "player.exited").
		Int("code", code).
		Msg("external player exited")

	v.mu.Lock()
	if v.cmd == cmd {
		v.cmd, v.done = nil, nil
	}
	v.mu.Unlock()
	close(done)
}

// Stop kills the running process, if any, and waits for it to be reaped.
func (v *VLC) Stop(ctx context.Context) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()
	return v.kill(ctx)
}

// Running reports whether a process is alive.
func (v *VLC) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cmd != nil
}

func (v *VLC) kill(ctx context.Context) error {
	v.mu.Lock()
	cmd, done := v.cmd, v.done
	v.cmd, v.done = nil, nil
	v.mu.Unlock()
	if cmd == nil {
		return nil
	}

	_ = cmd.Process.Kill()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
