package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/andrewfreeman/spectator/internal/sandbox"
	"github.com/andrewfreeman/spectator/internal/tools"
)

const (
	defaultShellTimeoutS  = 20
	shellOutputCharCap    = 20000
)

// Exec implements shell.exec{cmd, timeout_s?}.
func Exec(ctx context.Context, args map[string]any, execCtx tools.ExecContext) (map[string]any, error) {
	cmdStr, _ := args["cmd"].(string)
	if cmdStr == "" {
		return nil, fmt.Errorf("shell.exec: cmd is required")
	}
	if err := sandbox.ValidateShellCmd(cmdStr, sandbox.DefaultShellAllowedPrefixes, sandbox.DefaultShellDenySubstrings); err != nil {
		return nil, err
	}

	timeoutS := intArg(args, "timeout_s", defaultShellTimeoutS)
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutS)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", cmdStr)
	cmd.Dir = execCtx.Settings.SandboxRoot

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("shell.exec: %w", err)
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("shell.exec: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("shell.exec: %w", err)
	}

	// stdout and stderr must be drained concurrently: reading one to
	// completion before starting the other can deadlock if the child fills
	// the other pipe's OS buffer first.
	var stdout, stderr []byte
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); stdout = readAllCapped(outPipe, shellOutputCharCap) }()
	go func() { defer wg.Done(); stderr = readAllCapped(errPipe, shellOutputCharCap) }()
	wg.Wait()
	waitErr := cmd.Wait()

	if runCtx.Err() != nil {
		return nil, fmt.Errorf("command timed out")
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("shell.exec: %w", waitErr)
		}
	}

	return map[string]any{
		"stdout":    string(stdout),
		"stderr":    string(stderr),
		"exit_code": exitCode,
	}, nil
}

func readAllCapped(r interface{ Read([]byte) (int, error) }, capChars int) []byte {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for len(buf) < capChars {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	if len(buf) > capChars {
		buf = buf[:capChars]
	}
	return buf
}
