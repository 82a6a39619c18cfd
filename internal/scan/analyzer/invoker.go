package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

const (
	// ArtifactPlaceholder is replaced by the artifact file name in the command
	// template. The analyzer runs inside the artifact directory.
	ArtifactPlaceholder = "{artifact}"

	// DefaultInterpreter runs the analyzer command.
	DefaultInterpreter = "powershell"

	// DefaultCommand runs PSScriptAnalyzer and prints one tab separated line per result.
	DefaultCommand = "$a=Invoke-ScriptAnalyzer " + ArtifactPlaceholder +
		";foreach($b in $a){$b.RuleName+\"`t\"+$b.Severity+\"`t\"+$b.Line+\"`t\"+$b.Message}"

	DefaultTimeout = 60 * time.Second

	waitDelay = 2 * time.Second
)

// DefaultArgs are passed to the interpreter before the command string.
var DefaultArgs = []string{"-NoProfile", "-NonInteractive", "-Command"}

// InvokerConfig configures the analyzer process.
type InvokerConfig struct {
	Interpreter string
	Args        []string
	Command     string
	Env         map[string]string
	Timeout     time.Duration
	// Extension must match the ArtifactStore extension.
	Extension string
}

// Invoker runs the external analyzer against a stored artifact.
type Invoker struct {
	interpreter string
	args        []string
	command     string
	env         []string
	timeout     time.Duration
	ext         string
}

func NewInvoker(cfg InvokerConfig) *Invoker {
	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}

	args := cfg.Args
	if len(args) == 0 {
		args = DefaultArgs
	}

	command := cfg.Command
	if command == "" {
		command = DefaultCommand
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}

	return &Invoker{
		interpreter: interpreter,
		args:        append([]string(nil), args...),
		command:     command,
		env:         env,
		timeout:     timeout,
		ext:         normalizeExtension(cfg.Extension),
	}
}

func (i *Invoker) Interpreter() string {
	return i.interpreter
}

func (i *Invoker) Timeout() time.Duration {
	return i.timeout
}

// Command returns the command string that would be run for artifactPath.
// Only the base name is substituted; the directory never reaches the command.
func (i *Invoker) Command(artifactPath string) string {
	return strings.ReplaceAll(i.command, ArtifactPlaceholder, filepath.Base(artifactPath))
}

// Run executes the analyzer and waits for it to exit.
//
// A non-zero exit status is always an error, whatever stdout contains. Stdout
// and Stderr are decoded permissively: invalid UTF-8 becomes U+FFFD.
func (i *Invoker) Run(ctx context.Context, artifactPath string) (entity.AnalyzerOutput, error) {
	if !IsArtifactName(filepath.Base(artifactPath), i.ext) {
		return entity.AnalyzerOutput{}, &InvocationError{
			Reason:   ReasonSpawn,
			ExitCode: -1,
			Err:      fmt.Errorf("refusing to run analyzer on %q: not a generated artifact name", filepath.Base(artifactPath)),
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	args := append(append([]string(nil), i.args...), i.Command(artifactPath))

	//nolint:gosec // G204: interpreter and template come from configuration, the path is generated
	cmd := exec.CommandContext(execCtx, i.interpreter, args...)
	cmd.Dir = filepath.Dir(artifactPath)
	cmd.Env = append(os.Environ(), i.env...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	out := entity.AnalyzerOutput{
		Stdout:   strings.ToValidUTF8(stdout.String(), "\uFFFD"),
		Stderr:   strings.ToValidUTF8(stderr.String(), "\uFFFD"),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		return out, nil
	}

	ierr := &InvocationError{ExitCode: out.ExitCode, Stderr: out.Stderr, Err: err}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		ierr.Reason = ReasonTimeout
		ierr.Err = fmt.Errorf("after %v: %w", i.timeout, context.DeadlineExceeded)
	case ctx.Err() != nil:
		ierr.Reason = ReasonCanceled
		ierr.Err = ctx.Err()
	case errors.As(err, &exitErr):
		ierr.Reason = ReasonExitStatus
	default:
		ierr.Reason = ReasonSpawn
	}

	return out, ierr
}
