package common

import "strings"

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing sensitive data such as passwords from memory
// after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

// ExtractBearerToken returns the token part of an "Authorization: Bearer x"
// header value. The scheme is matched case-insensitively.
func ExtractBearerToken(header string) (string, bool) {
	if len(header) < len(BearerPrefix) || !strings.EqualFold(header[:len(BearerPrefix)], BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(BearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
