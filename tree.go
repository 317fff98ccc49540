// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"fmt"
	"strings"
)

// FileNode is a file of a FileTree.
type FileNode struct {
	Contents string `json:"contents"`
}

// TreeEntry is either a directory or a file.
type TreeEntry struct {
	Directory FileTree  `json:"directory,omitempty"`
	File      *FileNode `json:"file,omitempty"`
}

// FileTree is the nested snapshot of a project handed to container runtimes:
// {"src": {"directory": {"App.tsx": {"file": {"contents": "..."}}}}}.
type FileTree map[string]*TreeEntry

// BuildFileTree nests tabs by the "/" separated segments of their names.
// A file and a directory may not share a path.
func BuildFileTree(tabs []Tab) (FileTree, error) {
	tree := FileTree{}
	for _, tab := range tabs {
		pieces := strings.Split(strings.TrimPrefix(toPosixPath(tab.Name), LocalPrefix), "/")
		segment := tree
		for _, piece := range pieces[:len(pieces)-1] {
			if piece == "" {
				continue
			}
			entry, ok := segment[piece]
			if !ok {
				entry = &TreeEntry{Directory: FileTree{}}
				segment[piece] = entry
			}
			if entry.File != nil {
				return nil, fmt.Errorf("%s: %q is both a file and a directory", tab.Name, piece)
			}
			segment = entry.Directory
		}
		base := pieces[len(pieces)-1]
		if base == "" {
			return nil, fmt.Errorf("%q is not a file name", tab.Name)
		}
		if entry, ok := segment[base]; ok && entry.Directory != nil {
			return nil, fmt.Errorf("%s: %q is both a file and a directory", tab.Name, base)
		}
		segment[base] = &TreeEntry{File: &FileNode{Contents: tab.Source}}
	}
	return tree, nil
}
