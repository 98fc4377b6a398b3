package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"io"
	"testing"
	"time"

	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/types"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

// frame writes a length-prefixed payload the way the Python side does.
func frame(pipe io.Writer, payload []byte) {
	binary.Write(pipe, binary.BigEndian, uint32(len(payload)))
	pipe.Write(payload)
}

func facePayload(faces int) []byte {
	payload := new(bytes.Buffer)
	payload.WriteByte(0)                                   // Status OK
	binary.Write(payload, binary.BigEndian, uint32(faces)) // Face count
	for f := 0; f < faces; f++ {
		for i := 0; i < types.NumLandmarks; i++ {
			binary.Write(payload, binary.BigEndian, [2]int32{int32(100*f + i), int32(2*i + 1)})
		}
	}
	return payload.Bytes()
}

func TestLandmarks(t *testing.T) {
	// stdinMock simulates the pipe TO Python (we write to it)
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	// dataPipeMock simulates the pipe FROM Python (we read from it)
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	frame(dataPipeMock, facePayload(2))

	// Cmd is nil because we aren't testing process management, just the protocol
	w := &PythonWorker{ID: 1, Stdin: stdinMock, DataPipe: dataPipeMock}

	inputImage := []byte{0xDE, 0xAD, 0xBE, 0xEF} // Fake image bytes
	set, err := w.Landmarks(context.Background(), inputImage)
	if err != nil {
		t.Fatalf("Landmarks failed: %v", err)
	}

	// Verify Go sent the correct data TO Python
	sent := stdinMock.Bytes()
	if len(sent) != 4+len(inputImage) {
		t.Fatalf("Expected %d bytes sent, got %d", 4+len(inputImage), len(sent))
	}
	if binary.BigEndian.Uint32(sent[:4]) != uint32(len(inputImage)) {
		t.Errorf("length header = %d", binary.BigEndian.Uint32(sent[:4]))
	}

	// Only the first face is kept.
	if set[0] != image.Pt(0, 1) || set[67] != image.Pt(67, 135) {
		t.Errorf("unexpected landmarks: first %v, last %v", set[0], set[67])
	}
}

func TestLandmarksNoFace(t *testing.T) {
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}
	frame(dataPipeMock, facePayload(0))
	w := &PythonWorker{ID: 1, Stdin: &MockCloser{Buffer: new(bytes.Buffer)}, DataPipe: dataPipeMock}

	if _, err := w.Landmarks(context.Background(), []byte("img")); !errors.Is(err, landmarks.ErrNoFace) {
		t.Errorf("error = %v, want ErrNoFace", err)
	}
}

func TestLandmarksError(t *testing.T) {
	dataPipeMock := &MockCloser{Buffer: new(bytes.Buffer)}

	// Protocol: [Status:1] [MsgLen] [Msg]
	payload := new(bytes.Buffer)
	payload.WriteByte(1) // Status ERROR
	errMsg := "Python Exception: Import Error"
	binary.Write(payload, binary.BigEndian, uint32(len(errMsg)))
	payload.WriteString(errMsg)
	frame(dataPipeMock, payload.Bytes())

	w := &PythonWorker{ID: 1, Stdin: &MockCloser{Buffer: new(bytes.Buffer)}, DataPipe: dataPipeMock}
	_, err := w.Landmarks(context.Background(), []byte("frame"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "python worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "python worker error: "+errMsg, err)
	}
}

func TestParseLandmarksMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"missing count", []byte{0, 0}},
		{"truncated points", facePayload(1)[:100]},
		{"truncated message", []byte{1, 0, 0, 0, 9, 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLandmarks(tt.payload)
			if err == nil || errors.Is(err, landmarks.ErrNoFace) {
				t.Errorf("expected a decode error, got %v", err)
			}
		})
	}
}

func TestLandmarksTimeout(t *testing.T) {
	// A pipe nobody writes to simulates a hung detector.
	pr, pw := io.Pipe()
	defer pw.Close()

	w := &PythonWorker{
		ID:          2,
		Stdin:       &MockCloser{Buffer: new(bytes.Buffer)},
		DataPipe:    pr,
		ReadTimeout: 20 * time.Millisecond,
	}
	if _, err := w.Landmarks(context.Background(), []byte("img")); !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if _, err := w.Landmarks(context.Background(), []byte("img")); !errors.Is(err, ErrWorkerDead) {
		t.Errorf("second call error = %v, want ErrWorkerDead", err)
	}
}

func TestLandmarksCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	w := &PythonWorker{ID: 3, Stdin: &MockCloser{Buffer: new(bytes.Buffer)}, DataPipe: pr}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Landmarks(ctx, []byte("img")); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
