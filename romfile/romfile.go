// Package romfile loads ROM images from plain files or compressed
// archives (ZIP, 7z, gzip, tar.gz, RAR) and produces the content
// fingerprint the achievements backend uses to identify them.
package romfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Magic bytes for archive detection.
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
)

// maxROMSize caps extracted content at 8MB. Cartridge images for the
// supported consoles never come close.
const maxROMSize = 8 * 1024 * 1024

// ErrNoROMFile is returned when an archive contains no file with a
// recognized ROM extension.
var ErrNoROMFile = errors.New("no ROM file found in archive")

// ErrUnsupportedFormat is returned for files that are neither a known
// archive nor a recognized ROM.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrFileTooLarge is returned when content exceeds the size cap.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// File is a loaded ROM image. Name is the basename of the file the
// data came from, which for archives is the inner entry.
type File struct {
	Data []byte
	Name string
}

type format int

const (
	formatUnknown format = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// Load reads a ROM from path. Archives are detected by magic bytes and
// the first entry matching one of the given extensions is extracted;
// plain files must carry a matching extension themselves.
func Load(path string, extensions []string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	switch detectFormat(header[:n], path, extensions) {
	case formatRaw:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to seek file: %w", err)
		}
		data, err := limitedRead(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read ROM: %w", err)
		}
		return &File{Data: data, Name: filepath.Base(path)}, nil

	case formatZIP:
		return extractZIP(path, extensions)

	case format7z:
		return extract7z(path, extensions)

	case formatGzip:
		return extractGzip(path, extensions)

	case formatRAR:
		return extractRAR(path, extensions)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// detectFormat classifies a file by magic bytes, falling back to the
// extension for archives and to the caller's ROM extension list for
// raw images.
func detectFormat(header []byte, path string, extensions []string) format {
	if bytes.HasPrefix(header, magicZIP) || bytes.HasPrefix(header, magicZIPEnd) {
		return formatZIP
	}
	if bytes.HasPrefix(header, magicRAR) {
		return formatRAR
	}
	if bytes.HasPrefix(header, magic7z) {
		return format7z
	}
	if bytes.HasPrefix(header, magicGzip) {
		return formatGzip
	}

	lower := strings.ToLower(path)
	switch filepath.Ext(lower) {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}

	if isROMFile(lower, extensions) {
		return formatRaw
	}
	return formatUnknown
}

// isROMFile reports whether name carries one of the given extensions
// (case-insensitive).
func isROMFile(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// limitedRead reads up to maxROMSize bytes from r, erroring if exceeded.
func limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxROMSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxROMSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
