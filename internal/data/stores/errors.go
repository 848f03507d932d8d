package stores

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/colonyops/cinq/internal/core/kv"
)

// corruptMessages are driver messages that indicate a damaged file even
// when no result code survives wrapping.
var corruptMessages = []string{
	"database disk image is malformed",
	"file is not a database",
	"database corruption",
}

// IsCorruptionError reports whether err means the database file is damaged
// or unreadable and should be set aside.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN:
			return true
		}
	}

	msg := err.Error()
	for _, m := range corruptMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsNotFoundError reports whether err came from a missing or expired row.
func IsNotFoundError(err error) bool {
	return kv.IsMissing(err)
}

// RecoverFromCorruption moves cinq.db and its WAL and SHM companions aside
// under a timestamped name so the next open starts from an empty database.
func RecoverFromCorruption(dataDir string) error {
	base := filepath.Join(dataDir, "cinq.db")
	aside := fmt.Sprintf("%s.corrupt.%s", base, time.Now().Format("20060102-150405"))

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := setAside(base+suffix, aside+suffix); err != nil {
			return err
		}
	}
	return nil
}

// setAside renames src to dst. A missing src is fine. Leftover WAL or SHM
// files that cannot be renamed are removed, since SQLite would otherwise
// replay them against the fresh database.
func setAside(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if strings.HasSuffix(src, ".db") {
		return fmt.Errorf("move corrupt database aside: %w", err)
	}
	if rmErr := os.Remove(src); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(src), err)
	}
	return nil
}
