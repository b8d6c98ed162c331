package media

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDetectImage(t *testing.T) {
	ext, err := DetectImage(pngBytes(t))
	if err != nil {
		t.Fatalf("DetectImage failed for PNG: %v", err)
	}
	if ext != ".png" {
		t.Errorf("Expected .png, got %s", ext)
	}
}

func TestDetectImageRejectsText(t *testing.T) {
	_, err := DetectImage([]byte("notimage"))
	if err == nil {
		t.Error("Expected error for non-image payload")
	}
}

func TestSaveAndDelete(t *testing.T) {
	storage, err := NewStorage(t.TempDir(), "recipes")
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}

	filename, err := storage.SaveImage(pngBytes(t), ".png")
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	if !strings.HasSuffix(filename, ".png") {
		t.Errorf("Expected .png filename, got %s", filename)
	}
	if !storage.Exists(filename) {
		t.Error("Expected saved file to exist")
	}

	// Names are random, so saving twice never collides
	second, err := storage.SaveImage(pngBytes(t), ".png")
	if err != nil {
		t.Fatalf("Second SaveImage failed: %v", err)
	}
	if second == filename {
		t.Error("Expected distinct filenames for separate saves")
	}

	if err := storage.Delete(filename); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if storage.Exists(filename) {
		t.Error("Expected file to be gone after delete")
	}

	// Deleting again is fine
	if err := storage.Delete(filename); err != nil {
		t.Errorf("Expected repeat delete to succeed, got %v", err)
	}
}

func TestPathStaysInsideRoot(t *testing.T) {
	storage, err := NewStorage(t.TempDir(), "recipes")
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}

	got := storage.Path("../../etc/passwd")
	if strings.Contains(got, "..") {
		t.Errorf("Expected path to be contained in root, got %s", got)
	}
	if _, err := os.Stat(storage.Root()); err != nil {
		t.Errorf("Expected storage root to exist: %v", err)
	}
}

func TestURLPath(t *testing.T) {
	got := URLPath("/media/recipes", "abc.png")
	if got != "/media/recipes/abc.png" {
		t.Errorf("Unexpected URL path: %s", got)
	}
}
