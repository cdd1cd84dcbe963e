package dicom

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skippedNames are never DICOM images. DICOMDIR is an index, not an image.
var skippedNames = map[string]bool{
	"DICOMDIR":    true,
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// skippedExtensions are file types that are never DICOM images.
var skippedExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".yaml": true, ".yml": true,
	".xml": true, ".csv": true, ".log": true, ".html": true, ".pdf": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".zip": true, ".gz": true, ".tar": true, ".7z": true,
	".go": true, ".py": true, ".sh": true, ".exe": true, ".nii": true,
}

// skippedDirs are not descended into.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
}

// FindFiles lists candidate DICOM files under root in lexical order. Every
// file is a candidate except known non-image names and extensions; the
// parser decides the rest, so files without a DICM preamble are reported by
// the import instead of vanishing. root may also be a single file.
func FindFiles(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if skippedDirs[d.Name()] || !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if skippedNames[d.Name()] {
			return nil
		}
		if skippedExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
