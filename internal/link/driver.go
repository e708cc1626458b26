package link

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultCommandTimeout bounds a single reconnect command when none is configured.
const defaultCommandTimeout = 10 * time.Second

// maxOutputInError limits how much command output is quoted in an error.
const maxOutputInError = 256

// NopDriver accepts connect requests and does nothing.
// Used when the link is brought up by the host (NetworkManager, systemd-networkd).
type NopDriver struct{}

// Connect implements Driver.
func (NopDriver) Connect(context.Context) error { return nil }

// ExecDriver issues connect requests by running an external command,
// e.g. ["wpa_cli", "-i", "wlan0", "reconnect"].
type ExecDriver struct {
	Command []string
	Timeout time.Duration
}

// NewExecDriver returns an ExecDriver, or a NopDriver when command is empty.
func NewExecDriver(command []string, timeout time.Duration) Driver {
	if len(command) == 0 {
		return NopDriver{}
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &ExecDriver{Command: command, Timeout: timeout}
}

// Connect runs the configured command and waits for it to exit.
func (d *ExecDriver) Connect(ctx context.Context) error {
	if len(d.Command) == 0 {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	// #nosec G204 -- command comes from static configuration
	cmd := exec.CommandContext(runCtx, d.Command[0], d.Command[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w%s", ErrConnectCommand, d.Command[0], err, trimOutput(out.String()))
	}
	return nil
}

func trimOutput(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxOutputInError {
		s = s[:maxOutputInError] + "..."
	}
	return " (" + s + ")"
}
