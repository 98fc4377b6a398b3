package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/types"
	"github.com/andresmejia3/visage/internal/utils" // Using the SafeCommand wrapper
)

var (
	// ErrTimeout is returned when the detector does not answer within ReadTimeout.
	ErrTimeout = errors.New("landmark worker timed out")
	// ErrWorkerDead is returned by a worker that was killed after a timeout
	// or cancellation.
	ErrWorkerDead = errors.New("landmark worker is no longer running")
)

// Config controls how the detector process is launched.
type Config struct {
	Python      string // interpreter, default python3
	Script      string // default python/landmarks.py
	Predictor   string // path to the dlib 68-point shape predictor
	ReadTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.Script == "" {
		c.Script = "python/landmarks.py"
	}
	return c
}

// PythonWorker is one detector subprocess. It serves one request at a time.
type PythonWorker struct {
	ID          int
	Cmd         *utils.SafeCommand
	Stdin       io.WriteCloser
	DataPipe    io.ReadCloser
	ReadTimeout time.Duration

	mu   sync.Mutex
	dead bool
}

func NewPythonWorker(id int, cfg Config) (*PythonWorker, error) {
	cfg = cfg.withDefaults()

	// 1. Initialize the SafeCommand we built
	args := []string{"-u", cfg.Script}
	if cfg.Predictor != "" {
		args = append(args, "--predictor", cfg.Predictor)
	}
	py := utils.NewSafeCommand(cfg.Python, args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:          id,
		Cmd:         py,
		Stdin:       stdin,
		DataPipe:    r,
		ReadTimeout: cfg.ReadTimeout,
	}, nil
}

// Communicate sends one framed request and reads one framed response.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	// Read Result from the clean DataPipe, so Python's prints can't corrupt it.
	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// Landmarks sends an encoded image to the detector and returns the
// landmarks of the first face.
func (w *PythonWorker) Landmarks(ctx context.Context, data []byte) (types.LandmarkSet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return types.LandmarkSet{}, ErrWorkerDead
	}

	type reply struct {
		body []byte
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		body, err := w.Communicate(data)
		done <- reply{body, err}
	}()

	var timeout <-chan time.Time
	if w.ReadTimeout > 0 {
		t := time.NewTimer(w.ReadTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return types.LandmarkSet{}, fmt.Errorf("worker %d: %w", w.ID, r.err)
		}
		return ParseLandmarks(r.body)
	case <-ctx.Done():
		w.kill()
		return types.LandmarkSet{}, ctx.Err()
	case <-timeout:
		w.kill()
		return types.LandmarkSet{}, fmt.Errorf("worker %d: %w after %s", w.ID, ErrTimeout, w.ReadTimeout)
	}
}

// ParseLandmarks decodes a detector response.
//
// Protocol: [Status:0] [NumFaces u32] NumFaces x 68 x [X i32][Y i32]
// or [Status:1] [MsgLen u32] [Msg]
func ParseLandmarks(payload []byte) (types.LandmarkSet, error) {
	var set types.LandmarkSet
	r := bytes.NewReader(payload)

	status, err := r.ReadByte()
	if err != nil {
		return set, fmt.Errorf("empty worker response")
	}

	if status != 0 {
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return set, fmt.Errorf("malformed worker error: %w", err)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msg); err != nil {
			return set, fmt.Errorf("malformed worker error: %w", err)
		}
		return set, fmt.Errorf("python worker error: %s", msg)
	}

	var faces uint32
	if err := binary.Read(r, binary.BigEndian, &faces); err != nil {
		return set, fmt.Errorf("malformed worker response: %w", err)
	}
	if faces == 0 {
		return set, landmarks.ErrNoFace
	}

	// Only the first face is used; the rest are ignored.
	var pts [types.NumLandmarks][2]int32
	if err := binary.Read(r, binary.BigEndian, &pts); err != nil {
		return set, fmt.Errorf("truncated landmark data: %w", err)
	}
	for i, p := range pts {
		set[i].X, set[i].Y = int(p[0]), int(p[1])
	}
	return set, nil
}

// kill stops the process and closes the pipes so a blocked read returns.
func (w *PythonWorker) kill() {
	w.dead = true
	if w.Cmd != nil && w.Cmd.Process != nil {
		w.Cmd.Process.Kill()
	}
	w.DataPipe.Close()
}

func (w *PythonWorker) Close() {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
}
