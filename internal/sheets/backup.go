package sheets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupVerificationError means the pre-write backup of a worksheet could
// not be confirmed on disk. The worksheet is left untouched; synchronizing
// that worksheet is aborted.
type BackupVerificationError struct {
	SheetPath  string
	BackupPath string
	Err        error
}

func (e *BackupVerificationError) Error() string {
	return fmt.Sprintf("backup of %s could not be verified at %s: %v", e.SheetPath, e.BackupPath, e.Err)
}

func (e *BackupVerificationError) Unwrap() error {
	return e.Err
}

// backupPath derives the sibling backup path for a worksheet: the stem
// plus a date stamp and a uniqueness token, so several runs on one day
// never collide.
func backupPath(path string, now time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s_backup_%s_%s%s", stem, now.Format("2006-01-02"), uuid.NewString(), ext)
}

// writeWithBackup is the scoped destructive write shared by every call
// site that overwrites a worksheet file:
//
//  1. if the target exists, copy it to a dated sibling backup and verify
//     the backup is on disk — abort with BackupVerificationError if not;
//  2. write the new content to a temp file in the same directory;
//  3. rename the temp file over the target.
//
// On any failure before the final rename the target file's prior content
// is untouched. Returns the backup path, or "" when there was nothing to
// back up.
func writeWithBackup(path string, now time.Time, write func(f *os.File) error) (string, error) {
	backup := ""
	if _, err := os.Stat(path); err == nil {
		backup = backupPath(path, now)
		if err := copyFile(path, backup); err != nil {
			return "", &BackupVerificationError{SheetPath: path, BackupPath: backup, Err: err}
		}
		if _, err := os.Stat(backup); err != nil {
			return "", &BackupVerificationError{SheetPath: path, BackupPath: backup, Err: err}
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return backup, fmt.Errorf("failed to create worksheet directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return backup, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return backup, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return backup, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return backup, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return backup, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
