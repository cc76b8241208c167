package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// AllowedUploadType checks a declared upload type against the accepted set.
// Only jpg/jpeg/png pass the upload boundary.
func AllowedUploadType(declared string) bool {
	declared = strings.ToLower(strings.TrimSpace(declared))
	declared = strings.TrimPrefix(declared, "image/")
	switch declared {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// AllowedUploadFilename checks an uploaded filename's extension against the
// accepted set.
func AllowedUploadFilename(filename string) bool {
	return AllowedUploadType(GetFileExtension(filename))
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
