package organizer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"coworker/internal/fileutil"
)

const maxCollisionSlots = 10000

// slotPath returns base+ext for slot 0 and base_N+ext afterwards.
func slotPath(dir, base, ext string, slot int) string {
	if slot == 0 {
		return filepath.Join(dir, base+ext)
	}
	return filepath.Join(dir, base+"_"+strconv.Itoa(slot)+ext)
}

// FreePath returns the first unused slot for name in dir without creating it.
func FreePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for slot := 0; slot < maxCollisionSlots; slot++ {
		candidate := slotPath(dir, base, ext, slot)
		if _, err := os.Lstat(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted filename slots for %s in %s", name, dir)
}

// placeExclusive runs transfer against successive slots until one is free.
// transfer must fail with fs.ErrExist when its target exists.
func placeExclusive(dir, name string, transfer func(target string) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for slot := 0; slot < maxCollisionSlots; slot++ {
		candidate := slotPath(dir, base, ext, slot)
		err := transfer(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted filename slots for %s in %s", name, dir)
}

// verifyPlacement checks the placed file exists with the expected size.
func verifyPlacement(path string, size int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat placed file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("placed path %s is not a regular file", path)
	}
	if info.Size() != size {
		return fmt.Errorf("placed file %s has %d bytes, expected %d", path, info.Size(), size)
	}
	return nil
}

func stageBackup(source, backup string) error {
	if err := os.MkdirAll(filepath.Dir(backup), 0o755); err != nil {
		return fmt.Errorf("create trash directory: %w", err)
	}
	return fileutil.CopyFileExclusive(source, backup)
}
