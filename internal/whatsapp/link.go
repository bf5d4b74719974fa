// Package whatsapp builds WhatsApp deep links for relaying order messages.
package whatsapp

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"
)

// Platform selects which deep-link scheme to build. Both schemes resolve to
// the same logical send operation; the split is a presentation detail of the
// WhatsApp clients, not a protocol difference.
type Platform string

const (
	// PlatformMobile uses the wa.me short-link handled by the mobile app.
	PlatformMobile Platform = "mobile"
	// PlatformWeb uses the web.whatsapp.com send URL.
	PlatformWeb Platform = "web"
)

// ErrEmptyPhone is returned when the destination phone has no digits.
var ErrEmptyPhone = errors.New("whatsapp phone number is empty")

// SanitizePhone strips everything but digits. The result is expected to
// include the country code, e.g. "5511999887766".
func SanitizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildLink returns the deep link that opens a WhatsApp conversation with
// the given phone, pre-filled with text.
func BuildLink(platform Platform, phone, text string) (string, error) {
	digits := SanitizePhone(phone)
	if digits == "" {
		return "", ErrEmptyPhone
	}

	encoded := url.QueryEscape(text)
	if platform == PlatformWeb {
		return "https://web.whatsapp.com/send?phone=" + digits + "&text=" + encoded, nil
	}
	return "https://wa.me/" + digits + "?text=" + encoded, nil
}

// DetectPlatform guesses the client platform from a User-Agent header.
// Anything that does not look like a mobile browser gets the web scheme.
func DetectPlatform(userAgent string) Platform {
	ua := strings.ToLower(userAgent)
	for _, marker := range []string{"android", "iphone", "ipad", "mobile"} {
		if strings.Contains(ua, marker) {
			return PlatformMobile
		}
	}
	return PlatformWeb
}
