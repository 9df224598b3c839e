package upload

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	// Decoders for upload verification.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"reconstructd/internal/common/fsutil"
)

// Validator is the admission gate run before a job is submitted: extension,
// MIME and size checks plus a decode probe, so the workers only ever see
// images that actually parse.
type Validator struct {
	allowedExt  map[string]bool
	allowedMime map[string]bool
	maxBytes    int64
	uploadsDir  string
}

// DefaultExtensions are accepted when the config does not override them.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

var defaultMimeTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/webp"}

func NewValidator(exts []string, maxBytes int64, uploadsDir string) *Validator {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	v := &Validator{
		allowedExt:  make(map[string]bool, len(exts)),
		allowedMime: make(map[string]bool, len(defaultMimeTypes)),
		maxBytes:    maxBytes,
		uploadsDir:  uploadsDir,
	}
	for _, e := range exts {
		v.allowedExt[strings.ToLower(e)] = true
	}
	for _, m := range defaultMimeTypes {
		v.allowedMime[m] = true
	}
	return v
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename strips path components and replaces anything outside
// [A-Za-z0-9._-] so a hostile filename cannot escape the uploads dir.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	return name
}

// Save validates the upload and writes it to the uploads dir under
// "<token><ext>". Returns the stored path. Failures are typed: size, media
// type and decode rejections map to distinct HTTP statuses upstream.
func (v *Validator) Save(token, filename, contentType string, r io.Reader) (string, error) {
	name := SanitizeFilename(filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !v.allowedExt[ext] {
		return "", ErrUnsupportedType(fmt.Sprintf("file extension %q not allowed", ext))
	}
	if contentType != "" {
		// strip parameters like "; charset=..."
		mt := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
		if !v.allowedMime[strings.ToLower(mt)] {
			return "", ErrUnsupportedType(fmt.Sprintf("media type %q not allowed", mt))
		}
	}

	data, err := io.ReadAll(io.LimitReader(r, v.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > v.maxBytes {
		return "", ErrTooLarge(v.maxBytes)
	}
	if len(data) == 0 {
		return "", ErrInvalidImage("empty file")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", ErrInvalidImage("file is not a decodable image")
	}

	if err := fsutil.EnsureDir(v.uploadsDir); err != nil {
		return "", fmt.Errorf("uploads dir: %w", err)
	}
	dst := filepath.Join(v.uploadsDir, token+ext)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return dst, nil
}

// MaxBytes returns the configured size limit.
func (v *Validator) MaxBytes() int64 { return v.maxBytes }
