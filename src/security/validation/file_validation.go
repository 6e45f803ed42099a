// backend/src/security/validation/file_validation.go
package validation

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/username/contaflow/src/logger"
)

// AllowedClientContentTypes is a map for quick lookup of allowed client-declared MIME types.
// Statement uploads are text: raw CSV exports or text extracted from PDF statements.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // Often used for CSV by older Excel
	"text/plain":               true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": false, // .xlsx explicitly disallow
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if allowed, exists := AllowedClientContentTypes[base]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for statement upload", contentType)
	}
	return nil
}

// isBinaryContent checks if a buffer contains binary control characters (like null bytes)
// which indicate the file is not a valid text-based statement.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	if !utf8.Valid(buf) {
		return true
	}
	return false
}

// ValidateFileContent inspects the first KB of the upload to ensure it is
// text-based before it reaches the import pipeline.
func ValidateFileContent(file io.ReadSeeker) error {
	if file == nil {
		return fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for content checking: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file after content checking: %w", err)
	}

	if isBinaryContent(buffer[:n]) {
		return fmt.Errorf("file content appears to be binary, not a text statement")
	}
	return nil
}
