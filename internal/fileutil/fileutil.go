package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// CopyFileExclusive streams src to dst with SHA256 + size integrity
// verification. dst must not exist; an existing dst yields an error matching
// fs.ErrExist and is left untouched. The source mode and modification time are
// carried over. dst is removed on any failure after creation.
func CopyFileExclusive(src, dst string) (err error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return errors.New("copy hash mismatch: file corrupted during copy")
	}

	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
}

// MoveFile relocates src to dst without ever replacing an existing dst.
// Same-filesystem moves hard-link then unlink; cross-device moves (EXDEV) and
// filesystems without hard links fall back to a verified copy followed by
// removal of src. The returned error matches fs.ErrExist when dst is taken.
func MoveFile(src, dst string) error {
	linkErr := os.Link(src, dst)
	if linkErr == nil {
		if err := os.Remove(src); err != nil {
			_ = os.Remove(dst)
			return fmt.Errorf("remove source after link: %w", err)
		}
		return nil
	}
	if errors.Is(linkErr, fs.ErrExist) {
		return linkErr
	}
	if !IsCrossDevice(linkErr) && !errors.Is(linkErr, unix.EPERM) && !errors.Is(linkErr, unix.ENOTSUP) {
		return linkErr
	}
	if err := CopyFileExclusive(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// IsCrossDevice reports whether err is the EXDEV error returned when a link
// or rename spans filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

// SameContent reports whether two files have identical size and SHA256.
func SameContent(a, b string) (bool, error) {
	ha, sa, err := digest(a)
	if err != nil {
		return false, err
	}
	hb, sb, err := digest(b)
	if err != nil {
		return false, err
	}
	return sa == sb && bytes.Equal(ha, hb), nil
}

func digest(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
