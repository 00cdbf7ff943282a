// Package validation provides upload content validation.
package validation

import (
	"errors"
	"net/http"
)

// ErrDisallowedFileType is returned when an upload is not a supported video.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedMIMETypes is the allowlist of video MIME types accepted for
// recognition uploads.
var allowedMIMETypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

// sniffLen is the number of bytes inspected for content type detection.
const sniffLen = 512

// DetectVideoType sniffs the magic bytes of buf and reports the detected
// MIME type and whether it is an accepted video format. Extension and
// Content-Type headers are ignored; only content counts.
func DetectVideoType(buf []byte) (mime string, allowed bool) {
	if len(buf) == 0 {
		return "application/octet-stream", false
	}
	if len(buf) > sniffLen {
		buf = buf[:sniffLen]
	}

	mime = detectCustomMagicBytes(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}

	return mime, allowedMIMETypes[mime]
}

// detectCustomMagicBytes handles container formats http.DetectContentType
// does not recognize reliably.
func detectCustomMagicBytes(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// WebM/Matroska: EBML header (0x1A 0x45 0xDF 0xA3)
	if buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return "video/webm"
	}

	// MP4/QuickTime: ftyp box at offset 4 ([4 bytes size]["ftyp"][brand])
	if len(buf) >= 12 && buf[4] == 'f' && buf[5] == 't' && buf[6] == 'y' && buf[7] == 'p' {
		if string(buf[8:12]) == "qt  " {
			return "video/quicktime"
		}
		return "video/mp4"
	}

	return ""
}
