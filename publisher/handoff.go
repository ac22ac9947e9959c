package publisher

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"medisocial/generator"
)

// ErrInvalidPhone is returned when a phone number has no digits.
var ErrInvalidPhone = errors.New("phone number has no digits")

// WhatsAppLink builds a wa.me deep link that opens a chat with text prefilled.
func WhatsAppLink(phone, text string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return "", ErrInvalidPhone
	}
	// wa.me decodes %20 as a space but shows '+' literally.
	q := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, q), nil
}

// ImageFilename is the download name for a post image.
func ImageFilename(now time.Time, mimeType string) string {
	ext := "png"
	switch mimeType {
	case "image/jpeg", "image/jpg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("post-medisocial-%d.%s", now.UnixMilli(), ext)
}

// SaveImage decodes a data URI and writes it into dir. It returns the path written.
func SaveImage(dir, dataURI string, now time.Time) (string, error) {
	att, err := generator.ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	path := filepath.Join(dir, ImageFilename(now, att.MimeType))
	if err := os.WriteFile(path, att.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}
