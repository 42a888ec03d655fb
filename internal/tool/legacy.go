package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// SubprocessRunner executes deprecated inline-script tool implementations
// in a separate process rather than evaluating code in-process. The script
// is piped to the configured interpreter's stdin; arguments arrive as a
// JSON document on argv. This path is a security-relevant surface: the
// interpreter command should point at a capability-limited runtime.
type SubprocessRunner struct {
	// Command is the interpreter invocation, e.g. ["python3", "-I", "-"].
	Command []string
	// Timeout bounds script execution. Zero selects the default.
	Timeout time.Duration
}

// DefaultScriptTimeout bounds legacy script execution.
const DefaultScriptTimeout = 30 * time.Second

// Run executes the script and returns its stdout.
func (r *SubprocessRunner) Run(ctx context.Context, script string, args map[string]any) (string, error) {
	if len(r.Command) == 0 {
		return "", fmt.Errorf("no interpreter command configured for legacy scripts")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding script arguments: %w", err)
	}

	argv := append(append([]string{}, r.Command[1:]...), string(argsJSON))
	cmd := exec.CommandContext(ctx, r.Command[0], argv...)
	cmd.Stdin = bytes.NewReader([]byte(script))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("legacy script failed: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.String(), nil
}
