package wire

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidText is returned when captured symbol text is not URL-safe, padding-free base64.
var ErrInvalidText = errors.New("wire: invalid symbol text")

// EncodeText represents a packet as the text rendered into a visual symbol.
func EncodeText(packet []byte) string {
	return base64.RawURLEncoding.EncodeToString(packet)
}

// DecodeText recovers the packet bytes from captured symbol text.
func DecodeText(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidText)
	}
	b, err := base64.RawURLEncoding.Strict().DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidText, err)
	}
	return b, nil
}
