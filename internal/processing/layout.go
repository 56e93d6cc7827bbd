package processing

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Layout locates the frames a camera stored for a roll:
// {Root}/{roll_id}/{YYYY-MM-DD}/{camera}/cam1/{hour}/.
type Layout struct {
	Root string
}

func (l Layout) Dir(rollID int64, camera string, at time.Time) string {
	return filepath.Join(
		l.Root,
		strconv.FormatInt(rollID, 10),
		at.Format(time.DateOnly),
		camera,
		"cam1",
		strconv.Itoa(at.Hour()),
	)
}

// ListImages returns the JPEG frames in dir in name order.
// A missing directory yields no images and no error.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var images []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}

	return images, nil
}
