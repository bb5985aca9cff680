package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/pubimage/internal/citation"
	"github.com/JakeFAU/pubimage/internal/storage/local"
)

func readEntries(path string) ([]citation.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	entries, err := citation.LoadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

// writeEntries replaces path atomically so an interrupted run never leaves a
// truncated list behind.
func writeEntries(path string, entries []citation.Entry) error {
	var buf bytes.Buffer
	if err := citation.WriteEntries(&buf, entries); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	store, err := local.New(local.Config{BaseDir: filepath.Dir(path)})
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Dir(path), err)
	}
	if _, err := store.Put(filepath.Base(path), &buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
