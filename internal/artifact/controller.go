package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// BackupHandle tracks the aside copy of the active artifact for one run.
type BackupHandle struct {
	backupPath string
	activePath string
	hash       string
	restored   bool
}

// Hash returns the content hash recorded at backup time.
func (h *BackupHandle) Hash() string {
	return h.hash
}

// Controller owns the active artifact location. Only the controller
// mutates it; swaps are staged in the same directory and renamed into
// place so no partial state is ever observable.
type Controller struct {
	activePath  string
	variantsDir string
	logger      zerolog.Logger
}

// NewController returns a controller for the given active artifact path
// and variant source directory.
func NewController(activePath, variantsDir string, logger zerolog.Logger) *Controller {
	return &Controller{
		activePath:  activePath,
		variantsDir: variantsDir,
		logger:      logger,
	}
}

// ActivePath returns the location the controller manages.
func (c *Controller) ActivePath() string {
	return c.activePath
}

// VariantPath returns the source bundle location for a variant.
func (c *Controller) VariantPath(variant Variant) string {
	return filepath.Join(c.variantsDir, string(variant))
}

// Backup copies the currently active artifact aside and returns a
// handle for Restore. A missing active artifact is a precondition
// failure.
func (c *Controller) Backup() (*BackupHandle, error) {
	if _, err := os.Stat(c.activePath); err != nil {
		return nil, &PreconditionError{Op: "backup active artifact", Path: c.activePath, Err: err}
	}

	hash, err := Fingerprint(c.activePath)
	if err != nil {
		return nil, &PreconditionError{Op: "fingerprint active artifact", Path: c.activePath, Err: err}
	}

	dir := filepath.Dir(c.activePath)
	backup, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	if err := copyInto(backup, c.activePath); err != nil {
		_ = os.Remove(backup.Name())
		return nil, err
	}

	c.logger.Info().
		Str("active", c.activePath).
		Str("backup", backup.Name()).
		Str("hash", hash).
		Msg("active artifact backed up")

	return &BackupHandle{
		backupPath: backup.Name(),
		activePath: c.activePath,
		hash:       hash,
	}, nil
}

// Swap replaces the active artifact with the named variant's bundle.
// The replacement is staged next to the active path and renamed over it.
func (c *Controller) Swap(variant Variant) error {
	source := c.VariantPath(variant)
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &VariantMissingError{Variant: variant, Path: source}
		}
		return fmt.Errorf("stat variant source: %w", err)
	}

	dir := filepath.Dir(c.activePath)
	staged, err := os.CreateTemp(dir, ".swap-*")
	if err != nil {
		return fmt.Errorf("create swap staging file: %w", err)
	}
	if err := copyInto(staged, source); err != nil {
		_ = os.Remove(staged.Name())
		return err
	}
	if err := os.Rename(staged.Name(), c.activePath); err != nil {
		_ = os.Remove(staged.Name())
		return fmt.Errorf("swap variant into place: %w", err)
	}
	syncDir(dir)

	hash, err := Fingerprint(c.activePath)
	if err != nil {
		return err
	}
	c.logger.Info().
		Str("variant", string(variant)).
		Str("active", c.activePath).
		Str("hash", hash).
		Msg("variant swapped in")

	return nil
}

// Restore reinstates the backed-up artifact. It is safe to call more
// than once; only the first call moves the backup back.
func (c *Controller) Restore(handle *BackupHandle) error {
	if handle == nil || handle.restored {
		return nil
	}

	if err := os.Rename(handle.backupPath, handle.activePath); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	syncDir(filepath.Dir(handle.activePath))
	handle.restored = true

	c.logger.Info().
		Str("active", handle.activePath).
		Str("hash", handle.hash).
		Msg("original artifact restored")

	return nil
}

func copyInto(dst *os.File, sourcePath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		_ = dst.Close()
		return fmt.Errorf("open %s: %w", sourcePath, err)
	}
	defer source.Close()

	if _, err := io.Copy(dst, source); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy %s: %w", sourcePath, err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("sync %s: %w", dst.Name(), err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst.Name(), err)
	}
	return nil
}

func syncDir(dir string) {
	if handle, err := os.Open(dir); err == nil {
		_ = handle.Sync()
		_ = handle.Close()
	}
}
