package graph

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

// TestHelperProcess is not a real test; the renderer tests re-exec the test
// binary with GO_WANT_HELPER_PROCESS set to stand in for the chart script.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	itemID := os.Args[len(os.Args)-1]
	switch os.Getenv("HELPER_MODE") {
	case "ok":
		fmt.Println(base64.StdEncoding.EncodeToString(append(pngBytes, []byte(itemID)...)))
	case "fail":
		fmt.Fprintln(os.Stderr, "Error: Zabbix login failed")
		os.Exit(1)
	case "empty":
	case "garbage":
		fmt.Println("not base64 !!!")
	case "big":
		fmt.Print(strings.Repeat("A", 4096))
	case "hang":
		time.Sleep(10 * time.Second)
	}
	os.Exit(0)
}

func helperRenderer(mode string) *Renderer {
	return &Renderer{
		Command:   []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
		Env:       append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode),
		Timeout:   5 * time.Second,
		MaxOutput: DefaultMaxOutput,
	}
}

func TestRenderDecodesOutput(t *testing.T) {
	img, err := helperRenderer("ok").Render(context.Background(), "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(img) != string(pngBytes)+"12345" {
		t.Fatalf("unexpected image %q", img)
	}
}

func TestRenderFailures(t *testing.T) {
	tests := []struct {
		mode       string
		reason     string
		diagnostic string
	}{
		{mode: "fail", reason: "renderer failed", diagnostic: "Error: Zabbix login failed"},
		{mode: "empty", reason: "renderer produced no output"},
		{mode: "garbage", reason: "renderer output is not base64"},
	}

	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			_, err := helperRenderer(tc.mode).Render(context.Background(), "1")
			var renderErr *RenderError
			if !errors.As(err, &renderErr) {
				t.Fatalf("expected RenderError, got %v", err)
			}
			if renderErr.Reason != tc.reason {
				t.Fatalf("reason=%q, expected %q", renderErr.Reason, tc.reason)
			}
			if tc.diagnostic != "" && renderErr.Diagnostic != tc.diagnostic {
				t.Fatalf("diagnostic=%q, expected %q", renderErr.Diagnostic, tc.diagnostic)
			}
		})
	}
}

func TestRenderOutputLimit(t *testing.T) {
	r := helperRenderer("big")
	r.MaxOutput = 1024

	_, err := r.Render(context.Background(), "1")
	if !errors.Is(err, errOutputTooLarge) {
		t.Fatalf("expected output limit error, got %v", err)
	}
}

func TestRenderTimeout(t *testing.T) {
	r := helperRenderer("hang")
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := r.Render(context.Background(), "1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("renderer was not cancelled")
	}
}

func TestRenderTimeoutKillsShellChildren(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	r := &Renderer{
		Command: []string{sh, "-c", "sleep 6; echo aGk="},
		Timeout: 200 * time.Millisecond,
	}

	start := time.Now()
	_, err = r.Render(context.Background(), "1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("render returned after %s, child kept the pipes open", elapsed)
	}
}

func TestCappedBuffer(t *testing.T) {
	if _, ok := any(&cappedBuffer{}).(io.ReaderFrom); ok {
		t.Fatalf("cappedBuffer must not implement io.ReaderFrom")
	}

	strict := &cappedBuffer{limit: 4}
	if _, err := strict.Write([]byte("abcdef")); !errors.Is(err, errOutputTooLarge) {
		t.Fatalf("expected errOutputTooLarge, got %v", err)
	}
	if !strict.overflow || strict.String() != "abcd" {
		t.Fatalf("unexpected state overflow=%v content=%q", strict.overflow, strict.String())
	}

	lenient := &cappedBuffer{limit: 4, truncate: true}
	n, err := io.Copy(lenient, strings.NewReader("abcdef"))
	if err != nil || n != 6 || lenient.String() != "abcd" {
		t.Fatalf("n=%d err=%v content=%q", n, err, lenient.String())
	}
}

func TestNewRendererSplitsCommand(t *testing.T) {
	r, err := NewRenderer(`python3 "/opt/bee zap/beebotzap.py"`, "graphs", time.Second, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Command) != 2 || r.Command[1] != "/opt/bee zap/beebotzap.py" {
		t.Fatalf("unexpected argv %q", r.Command)
	}

	if _, err := NewRenderer("   ", "", time.Second, 0); err == nil {
		t.Fatalf("expected error for empty command")
	}
}
