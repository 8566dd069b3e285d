package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const stagingSuffix = ".part"

// ErrUnsafePath is returned for identifiers that would resolve outside the
// destination root.
var ErrUnsafePath = errors.New("path escapes destination root")

// relativeName strips the "./" and leading separators a listing puts in
// front of names. Devices and local storage both expect bare relative paths.
func relativeName(id string) string {
	name := strings.TrimPrefix(id, "./")
	return strings.TrimLeft(name, "/")
}

func resolveRelativePath(id, localBasePath string) (string, error) {
	rel := path.Clean(relativeName(id))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%q: %w", id, ErrUnsafePath)
	}
	return filepath.Join(localBasePath, filepath.FromSlash(rel)), nil
}

// copyChunks streams src into dst in writes of exactly chunkSize bytes,
// except for the final short chunk.
func copyChunks(dst io.Writer, src io.Reader, chunkSize int) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return written, nil
		default:
			return written, rerr
		}
	}
}

// saveStaged writes src to localPath through a sibling staging file that is
// renamed into place on success and removed on any failure. src is always
// closed, and a failing Close (an unconfirmed remote transfer) fails the save.
func saveStaged(localPath string, src io.ReadCloser, chunkSize int) (written int64, err error) {
	srcClosed := false
	defer func() {
		if !srcClosed {
			_ = src.Close()
		}
	}()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	staging := localPath + stagingSuffix
	destFile, err := os.Create(staging)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = destFile.Close()
			_ = os.Remove(staging)
		}
	}()

	written, err = copyChunks(destFile, src, chunkSize)
	if err != nil {
		return written, fmt.Errorf("failed to copy file contents: %w", err)
	}
	srcClosed = true
	if err = src.Close(); err != nil {
		return written, fmt.Errorf("failed to complete retrieval: %w", err)
	}
	if err = destFile.Close(); err != nil {
		return written, fmt.Errorf("failed to close destination file: %w", err)
	}
	if err = os.Rename(staging, localPath); err != nil {
		return written, fmt.Errorf("failed to move staged file into place: %w", err)
	}
	return written, nil
}
