package history

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pevans/propfinder/ads"
	"github.com/sirupsen/logrus"
)

// FileStore keeps identifiers in a newline-delimited text file.
type FileStore struct {
	path string
	log  logrus.FieldLogger
}

// NewFileStore creates a file-backed store. The file itself is created on
// the first Load or Append.
func NewFileStore(path string, log logrus.FieldLogger) *FileStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileStore{path: path, log: log}
}

// Load reads every identifier in the file. If the file does not exist it is
// created and an empty set is returned. If it cannot be created, the failure
// is logged and an empty set is still returned.
func (f *FileStore) Load() (ads.Set, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.log.WithField("path", f.path).Info("History file not found, creating it")
		if err := f.create(); err != nil {
			f.log.WithField("path", f.path).WithError(err).Error("Failed to create history file")
		}
		return ads.NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	set := ads.NewSet()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// Tolerate CRLF files and blank lines
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		set.Add(id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	return set, nil
}

// Append writes ids to the end of the file in a single write and syncs it
// to disk before returning.
func (f *FileStore) Append(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := f.ensureDir(); err != nil {
		return err
	}

	// 0600: owner-only read/write
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer

	// A previous run may have died mid-write. Start on a fresh line so the
	// first new id is never merged with a partial record.
	torn, err := endsWithoutNewline(file)
	if err != nil {
		return fmt.Errorf("failed to inspect history file: %w", err)
	}
	if torn {
		buf.WriteByte('\n')
	}

	for _, id := range ids {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync history file: %w", err)
	}

	return nil
}

// Close is a no-op; the file is opened per operation.
func (f *FileStore) Close() error {
	return nil
}

// create makes an empty history file (and its directory).
func (f *FileStore) create() error {
	if err := f.ensureDir(); err != nil {
		return err
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create history file: %w", err)
	}
	return file.Close()
}

func (f *FileStore) ensureDir() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	return nil
}

// endsWithoutNewline reports whether a non-empty file's last byte is not a
// newline.
func endsWithoutNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}

	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	return last[0] != '\n', nil
}
