package photo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Photo is one source image discovered during the scan. Immutable after
// creation; every later stage refers to it by ID.
type Photo struct {
	ID          string
	Path        string
	Size        int64
	CaptureTime time.Time
}

// ScanResult carries the discovered photos plus skip accounting.
type ScanResult struct {
	Photos  []Photo
	Skipped int
}

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Scan walks dir for supported images. Capture time is the file
// modification time; embedded capture metadata is the converter's job.
// Results are ordered by path so runs are reproducible.
func Scan(dir string) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat source folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", dir)
	}

	result := &ScanResult{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtensions[ext] {
			result.Skipped++
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		result.Photos = append(result.Photos, Photo{
			ID:          uuid.NewString(),
			Path:        path,
			Size:        fi.Size(),
			CaptureTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source folder: %w", err)
	}

	sort.Slice(result.Photos, func(i, j int) bool {
		return result.Photos[i].Path < result.Photos[j].Path
	})
	return result, nil
}
