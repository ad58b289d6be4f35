package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ExecDevice grabs each frame by running an external snapshot command that
// writes a single image to stdout. The placeholders {width} and {height} are
// substituted from the constraints. Arguments are split on whitespace.
type ExecDevice struct {
	Command string
}

// Open probes the command once so permission problems surface at start.
func (d ExecDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	args := strings.Fields(d.Command)
	if len(args) == 0 {
		return nil, errors.New("no camera command configured")
	}
	for i, a := range args {
		a = strings.ReplaceAll(a, "{width}", strconv.Itoa(c.Width))
		args[i] = strings.ReplaceAll(a, "{height}", strconv.Itoa(c.Height))
	}
	s := &execStream{args: args}
	if _, err := s.Frame(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type execStream struct {
	args []string
}

func (s *execStream) Frame(ctx context.Context) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.args[0], s.args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if errors.Is(err, fs.ErrPermission) || strings.Contains(strings.ToLower(msg), "permission denied") {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
		return nil, fmt.Errorf("snapshot command: %w: %s", err, msg)
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}

func (s *execStream) Close() error { return nil }

// StillDevice serves a fixed image file as the video source.
type StillDevice struct {
	Path string
}

func (d StillDevice) Open(_ context.Context, _ Constraints) (Stream, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("open still image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode still image: %w", err)
	}
	return &stillStream{img: img}, nil
}

type stillStream struct {
	img image.Image
}

func (s *stillStream) Frame(context.Context) (image.Image, error) { return s.img, nil }
func (s *stillStream) Close() error                               { return nil }

// NewDevice picks a driver by name.
func NewDevice(driver, command, stillPath string) (Device, error) {
	switch driver {
	case "exec":
		return ExecDevice{Command: command}, nil
	case "still":
		return StillDevice{Path: stillPath}, nil
	}
	return nil, fmt.Errorf("unknown camera driver %q", driver)
}
