// Package graph runs the external chart renderer and decodes its output.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

const DefaultMaxOutput = 5 * 1024 * 1024

// waitDelay bounds how long Render waits for the output pipes after the
// renderer is killed; grandchildren may still hold them open.
const waitDelay = 2 * time.Second

var errOutputTooLarge = errors.New("renderer output exceeds limit")

// RenderError carries the renderer's diagnostic stream back to the caller.
type RenderError struct {
	ItemID     string
	Reason     string
	Diagnostic string
	Err        error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render graph for item %s: %s", e.ItemID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer invokes Command with the item id appended and expects a base64
// encoded image on stdout.
type Renderer struct {
	Command   []string
	Dir       string
	Env       []string
	Timeout   time.Duration
	MaxOutput int64
}

// NewRenderer splits a shell-style command line such as
// `python3 "/opt/beezap/beebotzap.py"`.
func NewRenderer(command, dir string, timeout time.Duration, maxOutput int64) (*Renderer, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse graph command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("graph command is empty")
	}
	return &Renderer{Command: argv, Dir: dir, Timeout: timeout, MaxOutput: maxOutput}, nil
}

func (r *Renderer) Render(ctx context.Context, itemID string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	limit := r.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	args := append(append([]string{}, r.Command[1:]...), itemID)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = r.Dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit, truncate: true}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	diag := strings.TrimSpace(stderr.String())
	switch {
	case ctx.Err() != nil:
		return nil, &RenderError{ItemID: itemID, Reason: "renderer did not finish in time", Diagnostic: diag, Err: ctx.Err()}
	case stdout.overflow:
		return nil, &RenderError{ItemID: itemID, Reason: "renderer output too large", Diagnostic: diag, Err: errOutputTooLarge}
	case err != nil:
		return nil, &RenderError{ItemID: itemID, Reason: "renderer failed", Diagnostic: diag, Err: err}
	}

	encoded := strings.TrimSpace(stdout.String())
	if encoded == "" {
		return nil, &RenderError{ItemID: itemID, Reason: "renderer produced no output", Diagnostic: diag}
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &RenderError{ItemID: itemID, Reason: "renderer output is not base64", Diagnostic: diag, Err: err}
	}
	return img, nil
}

// cappedBuffer stops accepting data past limit. With truncate set the excess
// is discarded silently, otherwise the write fails and the child gets EPIPE.
// The buffer is a named field so exec cannot bypass Write through ReadFrom.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int64
	truncate bool
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - int64(b.buf.Len())
	if int64(len(p)) <= room {
		return b.buf.Write(p)
	}
	b.overflow = true
	if room > 0 {
		b.buf.Write(p[:room])
	}
	if b.truncate {
		return len(p), nil
	}
	return 0, errOutputTooLarge
}

func (b *cappedBuffer) String() string { return b.buf.String() }
