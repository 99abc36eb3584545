package playback

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
)

// CommandRenderer pipes each buffer into an external player on stdin.
type CommandRenderer struct {
	Command string
	Args    []string
}

// FFPlay plays any format ffmpeg understands and exits when done.
func FFPlay() CommandRenderer {
	return CommandRenderer{
		Command: "ffplay",
		Args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"},
	}
}

func (r CommandRenderer) Render(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Stdin = bytes.NewReader(audio)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: %s", r.Command, stderr.String())
	}
	return nil
}

// FileRenderer writes each buffer to a numbered file in Dir.
type FileRenderer struct {
	Dir string
	Ext string
	n   atomic.Int64
}

func (r *FileRenderer) Render(_ context.Context, audio []byte) error {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	ext := r.Ext
	if ext == "" {
		ext = "mp3"
	}
	name := filepath.Join(r.Dir, fmt.Sprintf("reply-%03d.%s", r.n.Add(1), ext))
	return errors.Wrap(os.WriteFile(name, audio, 0o644), "write reply audio")
}
