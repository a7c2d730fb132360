package errors

import (
	"strings"
	"unicode"
)

// maxFeatureIDLength bounds identifiers accepted from map events and routes.
const maxFeatureIDLength = 64

// ValidateFeatureID validates a feature identifier received from outside the
// process (HTTP events, comparison routes, replay scripts).
//
// The rules are conservative:
//   - No empty identifiers
//   - Maximum length of 64 characters
//   - No control characters or whitespace
//   - No "+" or "/", which delimit comparison routes
func ValidateFeatureID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidFeatureID, "feature id cannot be empty")
	}

	if len(id) > maxFeatureIDLength {
		return New(ErrCodeInvalidFeatureID, "feature id too long (max %d characters)", maxFeatureIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidFeatureID, "feature id contains invalid characters")
		}
	}

	if strings.ContainsAny(id, "+/\\") {
		return New(ErrCodeInvalidFeatureID, "feature id cannot contain route separators: %q", id)
	}

	return nil
}

// ValidatePath validates a local dataset path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// IsURL reports whether source looks like an http(s) URL rather than a path.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
