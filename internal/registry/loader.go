package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"reconstructd/internal/common/fsutil"
	"reconstructd/pkg/types"
)

// Artifact extensions recognized as loadable super-resolution models.
var modelExts = map[string]bool{
	".pt":   true,
	".pth":  true,
	".onnx": true,
}

// defaultScale is assumed when a filename carries no xN marker.
const defaultScale = 4

var scaleRe = regexp.MustCompile(`(?i)[-_.]x([0-9]+)`)

// LoadDir scans a directory for model artifacts and builds a registry from
// filenames. ID is the filename without extension; Path is the absolute file
// path. The upscaling factor is parsed from an xN marker in the name
// (e.g. "esrgan-x4.pth" -> 4).
func LoadDir(dir string) ([]types.Backend, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var backends []types.Backend
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !modelExts[ext] {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		backends = append(backends, types.Backend{
			ID:    id,
			Name:  id,
			Path:  filepath.Join(abs, name),
			Scale: parseScale(id),
		})
	}
	return backends, nil
}

// parseScale extracts the upscaling factor from an id like "esrgan-x4".
func parseScale(id string) int {
	m := scaleRe.FindStringSubmatch(id)
	if m == nil {
		return defaultScale
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 16 {
		return defaultScale
	}
	return n
}
