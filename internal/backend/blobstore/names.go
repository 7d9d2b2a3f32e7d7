package blobstore

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const maxExtensionLength = 10

// GenerateName returns "<uuid-v4>.<ext>". The extension comes from the client
// filename and falls back to the sniffed content type.
func GenerateName(originalFilename string, content []byte) string {
	ext := extensionOf(originalFilename)
	if ext == "" {
		ext = strings.TrimPrefix(mimetype.Detect(content).Extension(), ".")
	}
	if ext == "" {
		ext = "bin"
	}
	return uuid.NewString() + "." + ext
}

// DerivedName builds the deterministic name of a transformation result
func DerivedName(sourceName, suffix, ext string) string {
	base := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	return base + suffix + "." + ext
}

func extensionOf(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filepath.Base(filename)), "."))
	if ext == "" || len(ext) > maxExtensionLength {
		return ""
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
