// Package mover relocates classified files into their destination buckets.
package mover

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/classify"
)

// Mover applies classifications to the filesystem. Bucket directories must
// exist before any file task starts; EnsureBuckets creates them.
type Mover struct {
	ValidDir   string
	InvalidDir string
}

// New constructs a mover with the two bucket directories.
func New(validDir, invalidDir string) *Mover {
	return &Mover{ValidDir: validDir, InvalidDir: invalidDir}
}

// EnsureBuckets creates the destination directories up front.
func (m *Mover) EnsureBuckets() error {
	for _, dir := range []string{m.ValidDir, m.InvalidDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mover: create bucket %s: %w", dir, err)
		}
	}
	return nil
}

// Apply moves (or copies, when asCopy is true) one classified file into
// its bucket. Files classified to stay in place are untouched.
func (m *Mover) Apply(c classify.Classification, asCopy bool) error {
	var destDir string
	switch c.Destination {
	case classify.ValidBucket:
		destDir = m.ValidDir
	case classify.InvalidBucket:
		destDir = m.InvalidDir
	default:
		return nil
	}
	if destDir == "" {
		return nil
	}

	dest := filepath.Join(destDir, filepath.Base(c.Path))
	if asCopy {
		return copyFile(c.Path, dest)
	}
	return moveFile(c.Path, dest)
}

// moveFile renames, falling back to copy+remove across filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("mover: remove source %s: %w", src, err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("mover: open source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("mover: create destination %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("mover: copy to %s: %w", dest, err)
	}
	return out.Close()
}
