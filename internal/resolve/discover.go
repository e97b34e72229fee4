package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Discover lists every file with extension ext directly inside each of dirs,
// in dir order and sorted by name within a dir.
//
// Relative dirs are joined to root. Missing dirs are skipped. The same file
// name found in two dirs yields two entries.
//
// If filter is non-empty, only files whose test name matches the glob are kept.
func Discover(root string, dirs []string, ext, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}

		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read test directory %s: %w", dir, err)
		}

		var found []string
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ext {
				continue
			}
			if filter != "" {
				if ok, _ := filepath.Match(filter, Name(e.Name())); !ok {
					continue
				}
			}
			found = append(found, filepath.Join(dir, e.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	return files, nil
}
