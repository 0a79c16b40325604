package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeFrame_NoResize(t *testing.T) {
	frame, err := NormalizeFrame(testPNG(t, 64, 48), 1280)
	if err != nil {
		t.Fatalf("NormalizeFrame failed: %v", err)
	}
	if frame.Width != 64 || frame.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", frame.Width, frame.Height)
	}
	if frame.Scale != 1 {
		t.Errorf("expected scale 1, got %v", frame.Scale)
	}
	if len(frame.Data) < 2 || frame.Data[0] != 0xFF || frame.Data[1] != 0xD8 {
		t.Error("expected JPEG output")
	}
}

func TestNormalizeFrame_Resize(t *testing.T) {
	frame, err := NormalizeFrame(testPNG(t, 400, 200), 100)
	if err != nil {
		t.Fatalf("NormalizeFrame failed: %v", err)
	}
	if frame.Width != 100 || frame.Height != 50 {
		t.Errorf("expected 100x50, got %dx%d", frame.Width, frame.Height)
	}
	if frame.Scale != 4 {
		t.Errorf("expected scale 4, got %v", frame.Scale)
	}
}

func TestNormalizeFrame_Empty(t *testing.T) {
	if _, err := NormalizeFrame(nil, 100); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestNormalizeFrame_Garbage(t *testing.T) {
	if _, err := NormalizeFrame([]byte("not an image"), 100); err == nil {
		t.Error("expected decode error")
	}
}

func TestSnapshotSource(t *testing.T) {
	data := testPNG(t, 32, 32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	src := NewSnapshotSource(server.URL, 1280)
	frame, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if frame.Width != 32 {
		t.Errorf("expected width 32, got %d", frame.Width)
	}
}

func TestSnapshotSource_CameraNotReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "warming up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewSnapshotSource(server.URL, 1280)
	if _, err := src.Snapshot(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestDirSource_CyclesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	for name, w := range map[string]int{"b.png": 20, "a.png": 10, "c.png": 30} {
		if err := os.WriteFile(filepath.Join(dir, name), testPNG(t, w, 10), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	// Non-image files are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(dir, 1280)
	expected := []int{10, 20, 30, 10}
	for i, want := range expected {
		frame, err := src.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("snapshot %d failed: %v", i, err)
		}
		if frame.Width != want {
			t.Errorf("snapshot %d: expected width %d, got %d", i, want, frame.Width)
		}
	}
}

func TestDirSource_Empty(t *testing.T) {
	src := NewDirSource(t.TempDir(), 1280)
	if _, err := src.Snapshot(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestDirSource_MissingDirectory(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "missing"), 1280)
	if _, err := src.Snapshot(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}
