package parser

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListImageFiles returns the image files (by extension) directly inside rootDir.
// Optionally pass an exclusion list to skip certain file names.
func ListImageFiles(rootDir string, exclusionList ...string) ([]string, error) {
	expandedPath, err := ExpandPath(rootDir)
	if err != nil {
		return nil, err
	}

	exclusions := make(map[string]struct{}, len(exclusionList))
	for _, name := range exclusionList {
		exclusions[name] = struct{}{}
	}

	entries, err := os.ReadDir(expandedPath)
	if err != nil {
		return nil, err
	}

	fileList := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, skip := exclusions[entry.Name()]; skip {
			continue
		}
		if IsImageExt(filepath.Ext(entry.Name())) {
			fileList = append(fileList, filepath.Join(expandedPath, entry.Name()))
		}
	}

	sort.Strings(fileList)
	return fileList, nil
}

// WalkImageFiles returns every image file below rootDir, recursively.
func WalkImageFiles(rootDir string) ([]string, error) {
	expandedPath, err := ExpandPath(rootDir)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(expandedPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageExt(filepath.Ext(p)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ExpandPath expands ~ to the user's home directory, or returns the path as-is
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, path[2:]), nil
	}
	return path, nil
}
