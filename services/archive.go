package services

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// archiveEntry is one rendered file destined for a zip archive.
type archiveEntry struct {
	Name string
	Data []byte
}

// writeArchive streams entries into a zip archive on w, in order. Entry
// names are made unique first.
func writeArchive(w io.Writer, entries []archiveEntry, modified time.Time) error {
	uniqueEntryNames(entries)
	zw := zip.NewWriter(w)
	for _, e := range entries {
		hdr := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip header %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("zip write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip close: %w", err)
	}
	return nil
}

// uniqueEntryNames gives later entries whose name repeats an earlier one
// (ignoring case) a "-2", "-3" ... suffix before the extension.
func uniqueEntryNames(entries []archiveEntry) {
	used := make(map[string]bool, len(entries))
	for i := range entries {
		name := entries[i].Name
		ext := path.Ext(name)
		base := strings.TrimSuffix(name, ext)
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		used[strings.ToLower(name)] = true
		entries[i].Name = name
	}
}
