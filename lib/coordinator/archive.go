// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Archive is the append-only plain-text log of every line read from
// the coordinator, one line per entry, in arrival order. It is owned
// by one Monitor for the duration of a session.
type Archive struct {
	file  *os.File
	path  string
	lines int
}

// OpenArchive opens path for appending, creating it if needed. An
// existing archive from an earlier session is extended, not replaced.
func OpenArchive(path string) (*Archive, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrArchiveWrite, path, err)
	}
	return &Archive{file: file, path: path}, nil
}

// Append writes line followed by a newline as a single write.
func (a *Archive) Append(line string) error {
	buffer := make([]byte, 0, len(line)+1)
	buffer = append(buffer, line...)
	buffer = append(buffer, '\n')
	if _, err := a.file.Write(buffer); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArchiveWrite, a.path, err)
	}
	a.lines++
	return nil
}

// Path returns the archive's file path.
func (a *Archive) Path() string { return a.path }

// Lines returns the number of lines appended through this handle.
func (a *Archive) Lines() int { return a.lines }

// Close syncs and closes the archive.
func (a *Archive) Close() error {
	if err := a.file.Sync(); err != nil {
		a.file.Close()
		return fmt.Errorf("%w: syncing %s: %v", ErrArchiveWrite, a.path, err)
	}
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrArchiveWrite, a.path, err)
	}
	return nil
}

// Compression selects how a finished archive is stored.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression validates a compression name from configuration.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("unknown archive compression %q (want none, zstd, or lz4)", name)
	}
}

// Extension returns the file suffix for compressed archives.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// CompressArchive compresses the closed archive at path into
// path+extension and removes the original. With CompressionNone it
// returns path unchanged. The compressed file is written under a
// temporary name and renamed into place, so a crash never leaves a
// truncated archive under the final name.
func CompressArchive(path string, compression Compression) (string, error) {
	if compression == CompressionNone || compression == "" {
		return path, nil
	}

	source, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening archive for compression: %w", err)
	}
	defer source.Close()

	destinationPath := path + compression.Extension()
	temporaryPath := destinationPath + ".tmp"
	destination, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("creating compressed archive: %w", err)
	}

	if err := compressStream(destination, source, compression); err != nil {
		destination.Close()
		os.Remove(temporaryPath)
		return "", err
	}
	if err := destination.Sync(); err != nil {
		destination.Close()
		os.Remove(temporaryPath)
		return "", fmt.Errorf("syncing compressed archive: %w", err)
	}
	if err := destination.Close(); err != nil {
		os.Remove(temporaryPath)
		return "", fmt.Errorf("closing compressed archive: %w", err)
	}
	if err := os.Rename(temporaryPath, destinationPath); err != nil {
		os.Remove(temporaryPath)
		return "", fmt.Errorf("renaming compressed archive into place: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return destinationPath, fmt.Errorf("removing uncompressed archive: %w", err)
	}
	return destinationPath, nil
}

func compressStream(destination io.Writer, source io.Reader, compression Compression) error {
	var writer io.WriteCloser
	switch compression {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(destination)
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		writer = encoder
	case CompressionLZ4:
		writer = lz4.NewWriter(destination)
	default:
		return fmt.Errorf("unsupported archive compression %q", compression)
	}

	if _, err := io.Copy(writer, source); err != nil {
		writer.Close()
		return fmt.Errorf("%s compress archive: %w", compression, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%s finish archive: %w", compression, err)
	}
	return nil
}

// OpenArchiveReader opens an archive for reading, decompressing it
// according to its extension (.zst, .lz4, or none).
func OpenArchiveReader(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	switch {
	case strings.HasSuffix(path, CompressionZstd.Extension()):
		decoder, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("creating zstd decoder for %s: %w", path, err)
		}
		return &decodingReader{Reader: decoder, close: func() error {
			decoder.Close()
			return file.Close()
		}}, nil
	case strings.HasSuffix(path, CompressionLZ4.Extension()):
		return &decodingReader{Reader: lz4.NewReader(file), close: file.Close}, nil
	default:
		return file, nil
	}
}

type decodingReader struct {
	io.Reader
	close func() error
}

func (r *decodingReader) Close() error { return r.close() }
