package imaging

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createTestImage writes a solid-color image named name into a temp dir.
// The encoder follows the extension; anything but .jpg/.jpeg is PNG.
func createTestImage(t *testing.T, name string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	switch filepath.Ext(name) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, nil)
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestCache_Load(t *testing.T) {
	path := createTestImage(t, "a.png", 100, 50, color.RGBA{255, 0, 0, 255})
	cache := NewCache()

	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("bounds: got %v", b)
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}

	// Served from the cache even after the file is gone.
	os.Remove(path)
	if _, err := cache.Load(path); err != nil {
		t.Errorf("cached Load failed: %v", err)
	}

	cache.Evict(path)
	if _, err := cache.Load(path); err == nil {
		t.Error("expected error after eviction of a deleted file")
	}
}

func TestCache_LoadErrors(t *testing.T) {
	cache := NewCache()

	if _, err := cache.Load("/nonexistent/image.png"); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.png")
	os.WriteFile(bad, []byte("not an image"), 0644)
	if _, err := cache.Load(bad); err == nil {
		t.Error("expected error for invalid image")
	}
	if cache.Len() != 0 {
		t.Errorf("failed loads should not be cached, Len=%d", cache.Len())
	}
}

func TestCache_Clear(t *testing.T) {
	cache := NewCache()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if _, err := cache.Load(createTestImage(t, name, 5, 5, color.White)); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}
	if cache.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", cache.Len())
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d", cache.Len())
	}
}

func TestCache_Concurrent(t *testing.T) {
	path := createTestImage(t, "c.png", 20, 20, color.Black)
	cache := NewCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestLoadInfo(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		wantFormat string
	}{
		{"png", "photo.png", "png"},
		{"jpeg", "photo.jpg", "jpeg"},
		{"jpeg long extension", "photo.jpeg", "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createTestImage(t, tt.file, 64, 32, color.RGBA{0, 128, 255, 255})
			info, err := LoadInfo(NewCache(), path)
			if err != nil {
				t.Fatalf("LoadInfo failed: %v", err)
			}
			if info.Width != 64 || info.Height != 32 {
				t.Errorf("size: got %dx%d", info.Width, info.Height)
			}
			if info.Format != tt.wantFormat {
				t.Errorf("format: got %s, want %s", info.Format, tt.wantFormat)
			}
			if info.FileSizeBytes <= 0 || info.Path != path {
				t.Errorf("unexpected info: %+v", info)
			}
		})
	}
}

func TestLoadInfo_ContentFormat(t *testing.T) {
	src := createTestImage(t, "real.png", 8, 8, color.White)
	renamed := filepath.Join(t.TempDir(), "mislabelled.jpg")
	data, _ := os.ReadFile(src)
	os.WriteFile(renamed, data, 0644)

	info, err := LoadInfo(NewCache(), renamed)
	if err != nil {
		t.Fatalf("LoadInfo failed: %v", err)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
}

func TestGetDimensions(t *testing.T) {
	path := createTestImage(t, "d.png", 123, 45, color.White)
	dims, err := GetDimensions(NewCache(), path)
	if err != nil {
		t.Fatalf("GetDimensions failed: %v", err)
	}
	if dims.Width != 123 || dims.Height != 45 {
		t.Errorf("got %dx%d, want 123x45", dims.Width, dims.Height)
	}

	if _, err := GetDimensions(NewCache(), "/nonexistent.png"); err == nil {
		t.Error("expected error for missing file")
	}
}
