package accepted

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path via create-temp-then-rename, so a
// reader never observes a partially-written file and a crash mid-write
// leaves the previous content (or nothing) rather than a corrupt file.
// Grounded on the teacher's export-manifest write discipline.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("accepted: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("accepted: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("accepted: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("accepted: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("accepted: replacing %s: %w", path, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("accepted: setting permissions on %s: %w", path, err)
	}
	return nil
}

// appendLine appends one line to an append-only JSONL log. A log append
// is not made atomic the way manifest/HEAD writes are: losing the tail
// of a single log line on a crash mid-append is tolerable (the manifest
// and content-addressed module files remain the source of truth), but a
// torn manifest or HEAD never is.
func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("accepted: creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - caller-controlled directory
	if err != nil {
		return fmt.Errorf("accepted: opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("accepted: appending to %s: %w", path, err)
	}
	return nil
}
