package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestHelperProcess is not a real test. The invoker tests run the test binary
// itself as the analyzer interpreter and select behavior through the command.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "no command")
		os.Exit(2)
	}

	mode, path, _ := strings.Cut(args[0], " ")
	switch mode {
	case "findings":
		fmt.Print("R1\tHigh\t10\tmsg1\r\nR2\tLow\t20\tmsg2\r\n")
	case "echo":
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(4)
		}
		fmt.Printf("Echo\tInformation\t1\t%s\n", data)
	case "fail":
		fmt.Print("R1\tHigh\t10\tmsg1\n")
		fmt.Fprint(os.Stderr, "analyzer exploded")
		os.Exit(3)
	case "sleep":
		time.Sleep(30 * time.Second)
	case "binary":
		os.Stdout.Write([]byte("R1\tHigh\t1\tbad \xff byte\n"))
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q", mode)
		os.Exit(2)
	}
	os.Exit(0)
}

func helperInvoker(mode string, timeout time.Duration) *Invoker {
	return NewInvoker(InvokerConfig{
		Interpreter: os.Args[0],
		Args:        []string{"-test.run=TestHelperProcess", "--"},
		Command:     mode + " " + ArtifactPlaceholder,
		Env:         map[string]string{"GO_WANT_HELPER_PROCESS": "1"},
		Timeout:     timeout,
	})
}

func storedArtifact(t *testing.T, content string) string {
	t.Helper()
	store := NewArtifactStore(ArtifactConfig{Dir: t.TempDir()}, nil)
	a, err := store.Put(context.Background(), []byte(content))
	if err != nil {
		t.Fatalf("Put() err = %v", err)
	}
	return a.Path
}

func TestInvokerRunSuccess(t *testing.T) {
	path := storedArtifact(t, "Write-Host hi")

	out, err := helperInvoker("findings", 10*time.Second).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if out.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", out.ExitCode)
	}
	if out.Stdout != "R1\tHigh\t10\tmsg1\r\nR2\tLow\t20\tmsg2\r\n" {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
}

func TestInvokerRunReadsArtifact(t *testing.T) {
	path := storedArtifact(t, "Invoke-Expression $x")

	out, err := helperInvoker("echo", 10*time.Second).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if !strings.Contains(out.Stdout, "Invoke-Expression $x") {
		t.Fatalf("expected artifact content in stdout, got %q", out.Stdout)
	}
}

func TestInvokerRunNonZeroExitIsAuthoritative(t *testing.T) {
	path := storedArtifact(t, "x")

	out, err := helperInvoker("fail", 10*time.Second).Run(context.Background(), path)

	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("Run() err = %v, want *InvocationError", err)
	}
	if !errors.Is(err, ErrInvocation) {
		t.Fatalf("expected ErrInvocation in chain")
	}
	if ierr.Reason != ReasonExitStatus {
		t.Fatalf("Reason = %s, want %s", ierr.Reason, ReasonExitStatus)
	}
	if ierr.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", ierr.ExitCode)
	}
	if ierr.Stderr != "analyzer exploded" {
		t.Fatalf("Stderr = %q", ierr.Stderr)
	}
	if !strings.Contains(out.Stdout, "msg1") {
		t.Fatalf("expected stdout to be captured, got %q", out.Stdout)
	}
}

func TestInvokerRunTimeout(t *testing.T) {
	path := storedArtifact(t, "x")

	start := time.Now()
	_, err := helperInvoker("sleep", 200*time.Millisecond).Run(context.Background(), path)

	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("Run() err = %v, want *InvocationError", err)
	}
	if ierr.Reason != ReasonTimeout {
		t.Fatalf("Reason = %s, want %s", ierr.Reason, ReasonTimeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded in chain, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

func TestInvokerRunCanceled(t *testing.T) {
	path := storedArtifact(t, "x")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := helperInvoker("sleep", 10*time.Second).Run(ctx, path)

	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("Run() err = %v, want *InvocationError", err)
	}
	if ierr.Reason != ReasonCanceled {
		t.Fatalf("Reason = %s, want %s", ierr.Reason, ReasonCanceled)
	}
}

func TestInvokerRunPermissiveDecoding(t *testing.T) {
	path := storedArtifact(t, "x")

	out, err := helperInvoker("binary", 10*time.Second).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if out.Stdout != "R1\tHigh\t1\tbad \uFFFD byte\n" {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
}

func TestInvokerRunSpawnFailure(t *testing.T) {
	path := storedArtifact(t, "x")

	inv := NewInvoker(InvokerConfig{Interpreter: "/nonexistent/analyzer-interpreter"})
	_, err := inv.Run(context.Background(), path)

	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("Run() err = %v, want *InvocationError", err)
	}
	if ierr.Reason != ReasonSpawn {
		t.Fatalf("Reason = %s, want %s", ierr.Reason, ReasonSpawn)
	}
	if ierr.ExitCode != -1 {
		t.Fatalf("ExitCode = %d, want -1", ierr.ExitCode)
	}
}

func TestInvokerRunRefusesForeignPath(t *testing.T) {
	inv := helperInvoker("findings", time.Second)

	for _, p := range []string{
		"/tmp/evil.ps1",
		"/tmp/x;Remove-Item C:.ps1",
		"/tmp/" + strings.Repeat("a", NameLength) + ".ps1 ; whoami",
	} {
		_, err := inv.Run(context.Background(), p)
		var ierr *InvocationError
		if !errors.As(err, &ierr) || ierr.Reason != ReasonSpawn {
			t.Fatalf("Run(%q) err = %v, want spawn refusal", p, err)
		}
	}
}

func TestInvokerCommandTemplate(t *testing.T) {
	inv := NewInvoker(InvokerConfig{})

	got := inv.Command("/scratch dir;x/" + nameA + ".ps1")
	want := "$a=Invoke-ScriptAnalyzer " + nameA + ".ps1;foreach($b in $a){$b.RuleName+\"`t\"+$b.Severity+\"`t\"+$b.Line+\"`t\"+$b.Message}"
	if got != want {
		t.Fatalf("Command() = %q, want %q", got, want)
	}
}

func TestInvocationErrorMessages(t *testing.T) {
	tests := []struct {
		err  *InvocationError
		want string
	}{
		{&InvocationError{Reason: ReasonExitStatus, ExitCode: 2}, "analyzer exited with status 2"},
		{&InvocationError{Reason: ReasonTimeout, Err: context.DeadlineExceeded}, "analyzer timed out: context deadline exceeded"},
		{&InvocationError{Reason: ReasonSpawn, Err: errors.New("not found")}, "analyzer could not be started: not found"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Fatalf("Error() = %q, want %q", got, tt.want)
		}
		if !errors.Is(tt.err, ErrInvocation) {
			t.Fatalf("expected %v to match ErrInvocation", tt.err)
		}
	}
}

func hostileScratchDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scratch dir;touch PWNED;#")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return dir
}

func TestInvokerRunsInsideArtifactDir(t *testing.T) {
	dir := hostileScratchDir(t)
	store := NewArtifactStore(ArtifactConfig{Dir: dir}, nil)
	a, err := store.Put(context.Background(), []byte("Get-Process"))
	if err != nil {
		t.Fatalf("Put() err = %v", err)
	}

	inv := helperInvoker("echo", 10*time.Second)
	if cmd := inv.Command(a.Path); cmd != "echo "+a.Name {
		t.Fatalf("Command() = %q, want only the artifact name", cmd)
	}

	out, err := inv.Run(context.Background(), a.Path)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if out.Stdout != "Echo\tInformation\t1\tGet-Process\n" {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
}

func TestInvokerScratchDirCannotInjectShell(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	dir := hostileScratchDir(t)
	store := NewArtifactStore(ArtifactConfig{Dir: dir}, nil)
	a, err := store.Put(context.Background(), []byte("Write-Host hi"))
	if err != nil {
		t.Fatalf("Put() err = %v", err)
	}

	inv := NewInvoker(InvokerConfig{
		Interpreter: sh,
		Args:        []string{"-c"},
		Command:     "cat " + ArtifactPlaceholder,
		Timeout:     10 * time.Second,
	})

	out, err := inv.Run(context.Background(), a.Path)
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if out.Stdout != "Write-Host hi" {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for _, d := range []string{wd, dir, filepath.Dir(dir)} {
		if _, err := os.Stat(filepath.Join(d, "PWNED")); err == nil {
			t.Fatalf("injected command ran in %s", d)
		}
	}
}
