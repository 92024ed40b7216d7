package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirStore keeps reports on local disk for development. BaseURL is the
// public prefix the directory is served under.
type DirStore struct {
	Root    string
	BaseURL string
}

func (d DirStore) PutReport(_ context.Context, key string, data []byte) (string, time.Time, error) {
	clean := filepath.Clean("/" + key)
	full := filepath.Join(d.Root, clean)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", time.Time{}, fmt.Errorf("could not create directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", time.Time{}, err
	}
	// local files never expire
	return strings.TrimRight(d.BaseURL, "/") + filepath.ToSlash(clean), time.Time{}, nil
}
