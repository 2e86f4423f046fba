package aod

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Reader decodes a stream of DataFrame documents.
type Reader struct {
	dec    *json.Decoder
	closer []io.Closer
	frames int
}

// NewReader reads uncompressed frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(bufio.NewReaderSize(r, 1<<20))}
}

// Open opens a frame file, decompressing by extension (.gz or .zst).
func Open(path string) (*Reader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	var src io.Reader = f
	closers := []io.Closer{f}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
		}
		src = gz
		closers = append([]io.Closer{gz}, closers...)
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd reader for %s: %w", path, err)
		}
		src = zr
		closers = append([]io.Closer{zstdCloser{zr}}, closers...)
	}

	r := NewReader(src)
	r.closer = closers
	return r, nil
}

// Next returns the next frame, or io.EOF at the end of the stream. Each
// frame is validated before it is returned.
func (r *Reader) Next() (*DataFrame, error) {
	var f DataFrame
	if err := r.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode frame %d: %w", r.frames, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("frame %d: %w", r.frames, err)
	}
	r.frames++
	return &f, nil
}

// Frames returns the number of frames read so far.
func (r *Reader) Frames() int { return r.frames }

// Close releases the decompressor and the file.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closer {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closer = nil
	return first
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// Writer encodes frames as one JSON document per line.
type Writer struct {
	enc    *json.Encoder
	closer []io.Closer
}

// NewWriter writes uncompressed frames to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Create creates a frame file, compressing by extension (.gz or .zst).
func Create(path string) (*Writer, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	var dst io.Writer = f
	closers := []io.Closer{f}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(f)
		dst = gz
		closers = append([]io.Closer{gz}, closers...)
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd writer for %s: %w", path, err)
		}
		dst = zw
		closers = append([]io.Closer{zw}, closers...)
	}

	w := NewWriter(dst)
	w.closer = closers
	return w, nil
}

// Write appends one frame.
func (w *Writer) Write(f *DataFrame) error {
	return w.enc.Encode(f)
}

// Close flushes the compressor and closes the file.
func (w *Writer) Close() error {
	var first error
	for _, c := range w.closer {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	w.closer = nil
	return first
}
