package util

import (
	"net/http"
	"path/filepath"
	"strings"
)

func isJPEG(b []byte) bool { return len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 }

func isPNG(b []byte) bool {
	return len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A
}

// SniffMimeHTTP detects JPEG/PNG by magic bytes, then falls back to net/http sniffing.
func SniffMimeHTTP(b []byte) string {
	if isJPEG(b) {
		return "image/jpeg"
	}
	if isPNG(b) {
		return "image/png"
	}
	if len(b) > 0 {
		if ct := http.DetectContentType(b); strings.HasPrefix(ct, "image/") {
			return ct
		}
	}
	return "application/octet-stream"
}

// IsImage reports whether the bytes look like an image.
func IsImage(b []byte) bool {
	return strings.HasPrefix(SniffMimeHTTP(b), "image/")
}

// ExtForMIME returns a file extension for the image types we send.
func ExtForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".bin"
	}
}

// FilenameOrDefault keeps a usable base name, or builds one from the sniffed type.
func FilenameOrDefault(name string, data []byte) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == "/" {
		return "image" + ExtForMIME(SniffMimeHTTP(data))
	}
	return name
}
