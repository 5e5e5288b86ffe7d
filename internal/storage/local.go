package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RMahshie/arpe/pkg/models"
)

// IsTouchstone reports whether name has a two-port Touchstone extension
func IsTouchstone(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".s2p")
}

// LoadDirectory reads every .s2p file of dir, sorted by name. Subdirectories
// are not searched. An unreadable directory fails the batch; an unreadable
// file is returned with Err set so that it gets its own error row.
func LoadDirectory(dir string) ([]models.InputFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsTouchstone(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]models.InputFile, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			err = fmt.Errorf("failed to read %s: %w", name, err)
		}
		files = append(files, models.InputFile{Name: name, Content: data, Err: err})
	}
	return files, nil
}
