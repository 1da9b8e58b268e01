// Package archive gives named-entry access to an exported account archive.
//
// Mastodon exports are gzip compressed tarballs, but zstd and snappy framed
// tarballs, plain tarballs and zip files are accepted as well. The format is
// detected from the first bytes of the file, not from its extension.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deemkeen/tootsite/domain"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type format int

const (
	formatTar format = iota
	formatGzip
	formatZstd
	formatSnappy
	formatZip
)

var (
	magicGzip   = []byte{0x1f, 0x8b}
	magicZstd   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicSnappy = []byte("\xff\x06\x00\x00sNaPpY")
	magicZip    = []byte("PK\x03\x04")
)

func (f format) String() string {
	switch f {
	case formatGzip:
		return "tar+gzip"
	case formatZstd:
		return "tar+zstd"
	case formatSnappy:
		return "tar+snappy"
	case formatZip:
		return "zip"
	default:
		return "tar"
	}
}

// Reader holds the archive file open for the lifetime of a run.
// Entry contents are never cached, every Extract goes back to the file.
// A Reader is not safe for concurrent use.
type Reader struct {
	path   string
	f      *os.File
	format format
	zipped map[string]*zip.File
	names  []string
	index  map[string]struct{}
}

// Open opens the archive at path and indexes its entry names.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrArchiveOpen, path, err)
	}

	r := &Reader{path: path, f: f, index: map[string]struct{}{}}
	if err := r.scan(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrArchiveOpen, path, err)
	}
	return r, nil
}

func (r *Reader) scan() error {
	info, err := r.f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}

	head := make([]byte, len(magicSnappy))
	n, err := r.f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	r.format = sniff(head[:n])

	if r.format == formatZip {
		zr, err := zip.NewReader(r.f, info.Size())
		if err != nil {
			return err
		}
		r.zipped = map[string]*zip.File{}
		for _, file := range zr.File {
			if file.FileInfo().IsDir() {
				continue
			}
			name := entryName(file.Name)
			r.zipped[name] = file
			r.add(name)
		}
	} else {
		tr, closer, err := r.rewind()
		if err != nil {
			return err
		}
		defer closer()
		for {
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read %s header: %w", r.format, err)
			}
			if !hdr.FileInfo().Mode().IsRegular() {
				continue
			}
			r.add(entryName(hdr.Name))
		}
	}

	if len(r.names) == 0 {
		return fmt.Errorf("no entries found in %s archive", r.format)
	}
	return nil
}

func (r *Reader) add(name string) {
	if _, ok := r.index[name]; ok {
		return
	}
	r.index[name] = struct{}{}
	r.names = append(r.names, name)
}

// rewind seeks to the start of the file and returns a tar reader positioned
// before the first header.
func (r *Reader) rewind() (*tar.Reader, func() error, error) {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}

	var (
		src    io.Reader = r.f
		closer           = func() error { return nil }
	)
	switch r.format {
	case formatGzip:
		gz, err := gzip.NewReader(r.f)
		if err != nil {
			return nil, nil, err
		}
		src, closer = gz, gz.Close
	case formatZstd:
		dec, err := zstd.NewReader(r.f)
		if err != nil {
			return nil, nil, err
		}
		src = dec
		closer = func() error {
			dec.Close()
			return nil
		}
	case formatSnappy:
		src = snappy.NewReader(r.f)
	}
	return tar.NewReader(src), closer, nil
}

// Extract returns a stream positioned at the start of the named entry.
// The stream is only valid until the next call to Extract or Close.
func (r *Reader) Extract(name string) (io.ReadCloser, error) {
	if _, ok := r.index[name]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrArchiveEntryMissing, name)
	}

	if r.format == formatZip {
		rc, err := r.zipped[name].Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", name, r.path, err)
		}
		return rc, nil
	}

	tr, closer, err := r.rewind()
	if err != nil {
		return nil, fmt.Errorf("rewind %s: %w", r.path, err)
	}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			closer()
			return nil, fmt.Errorf("read %s: %w", r.path, err)
		}
		if hdr.FileInfo().Mode().IsRegular() && entryName(hdr.Name) == name {
			return &entry{Reader: tr, close: closer}, nil
		}
	}
	closer()
	return nil, fmt.Errorf("%w: %s", domain.ErrArchiveEntryMissing, name)
}

// ReadEntry extracts the named entry fully into memory
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	rc, err := r.Extract(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", name, r.path, err)
	}
	return b, nil
}

// Entries lists the regular files of the archive in archive order
func (r *Reader) Entries() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Reader) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Format() string {
	return r.format.String()
}

func (r *Reader) Close() error {
	return r.f.Close()
}

type entry struct {
	io.Reader
	close func() error
}

func (e *entry) Close() error {
	return e.close()
}

func sniff(head []byte) format {
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return formatGzip
	case bytes.HasPrefix(head, magicZstd):
		return formatZstd
	case bytes.HasPrefix(head, magicSnappy):
		return formatSnappy
	case bytes.HasPrefix(head, magicZip):
		return formatZip
	default:
		return formatTar
	}
}

// entryName drops the "./" prefix some tar implementations store
func entryName(name string) string {
	for strings.HasPrefix(name, "./") {
		name = strings.TrimPrefix(name, "./")
	}
	return name
}
