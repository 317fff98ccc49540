// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

// maxTabSize bounds the size of a tab read back from an archive.
const maxTabSize = 8 << 20

// ExportZip writes every tab, the import map included, into a zip archive
// that ImportZip reads back.
func ExportZip(w io.Writer, tabs []Tab) error {
	zw := zip.NewWriter(w)
	for _, tab := range tabs {
		f, err := zw.Create(strings.TrimPrefix(toPosixPath(tab.Name), LocalPrefix))
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", tab.Name, err)
		}
		if _, err := io.WriteString(f, tab.Source); err != nil {
			return fmt.Errorf("failed to write %s: %w", tab.Name, err)
		}
	}
	return zw.Close()
}

// ImportZip reads the tabs of an archive written by ExportZip, in archive
// order. Directories are skipped.
func ImportZip(r io.ReaderAt, size int64) ([]Tab, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}

	tabs := make([]Tab, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.UncompressedSize64 > maxTabSize {
			return nil, fmt.Errorf("%s: file too large", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxTabSize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		tabs = append(tabs, Tab{Name: f.Name, Source: string(data)})
	}
	return tabs, nil
}
