package romfile

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var testExtensions = []string{".gb"}

// writeTestROM creates a temporary ROM file with the given extension.
func writeTestROM(t *testing.T, data []byte, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create test ROM file: %v", err)
	}
	return path
}

// writeTestZip creates a temporary .zip containing one ROM entry.
func writeTestZip(t *testing.T, romData []byte, romName string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	fw, err := w.Create(romName)
	if err != nil {
		t.Fatalf("Failed to create file in zip: %v", err)
	}
	if _, err := fw.Write(romData); err != nil {
		t.Fatalf("Failed to write to zip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return path
}

// writeTestGzip creates a temporary .gz wrapping raw ROM data.
func writeTestGzip(t *testing.T, romData []byte, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+ext+".gz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create gzip file: %v", err)
	}
	defer f.Close()

	w := gzip.NewWriter(f)
	if _, err := w.Write(romData); err != nil {
		t.Fatalf("Failed to write to gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close gzip: %v", err)
	}
	return path
}

func TestLoadRawROM(t *testing.T) {
	testData := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	path := writeTestROM(t, testData, ".gb")

	file, err := Load(path, testExtensions)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(file.Data, testData) {
		t.Errorf("Data mismatch: expected %v, got %v", testData, file.Data)
	}
	if file.Name != "test.gb" {
		t.Errorf("Name mismatch: expected test.gb, got %s", file.Name)
	}
}

func TestLoadZipArchive(t *testing.T) {
	testData := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	path := writeTestZip(t, testData, "game.gb")

	file, err := Load(path, testExtensions)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(file.Data, testData) {
		t.Errorf("Data mismatch: expected %v, got %v", testData, file.Data)
	}
	if file.Name != "game.gb" {
		t.Errorf("Name mismatch: expected game.gb, got %s", file.Name)
	}
}

func TestLoadZipWithoutROM(t *testing.T) {
	path := writeTestZip(t, []byte{0x01}, "readme.txt")

	if _, err := Load(path, testExtensions); !errors.Is(err, ErrNoROMFile) {
		t.Errorf("expected ErrNoROMFile, got %v", err)
	}
}

func TestLoadGzip(t *testing.T) {
	testData := []byte{0x10, 0x20, 0x30}
	path := writeTestGzip(t, testData, ".gb")

	file, err := Load(path, testExtensions)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(file.Data, testData) {
		t.Errorf("Data mismatch: expected %v, got %v", testData, file.Data)
	}
	if file.Name != "test.gb" {
		t.Errorf("Name mismatch: expected test.gb, got %s", file.Name)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeTestROM(t, []byte{0x01, 0x02}, ".xyz")

	if _, err := Load(path, testExtensions); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.gb"), testExtensions); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDetectFormatMagicBeatsExtension(t *testing.T) {
	// ZIP magic with a ROM extension still classifies as ZIP.
	header := []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00}
	if got := detectFormat(header, "game.gb", testExtensions); got != formatZIP {
		t.Errorf("detectFormat = %v, want formatZIP", got)
	}
}

func TestDetectFormatByExtension(t *testing.T) {
	tests := []struct {
		path string
		want format
	}{
		{"game.zip", formatZIP},
		{"game.7z", format7z},
		{"game.gz", formatGzip},
		{"game.tgz", formatGzip},
		{"game.rar", formatRAR},
		{"game.gb", formatRaw},
		{"game.xyz", formatUnknown},
	}
	for _, tt := range tests {
		if got := detectFormat(nil, tt.path, testExtensions); got != tt.want {
			t.Errorf("detectFormat(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLimitedReadCap(t *testing.T) {
	big := bytes.NewReader(make([]byte, maxROMSize+1))
	if _, err := limitedRead(big); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}

	small := bytes.NewReader(make([]byte, 32))
	data, err := limitedRead(small)
	if err != nil {
		t.Fatalf("limitedRead failed: %v", err)
	}
	if len(data) != 32 {
		t.Errorf("read %d bytes, want 32", len(data))
	}
}
