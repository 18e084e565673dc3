package auth

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"

	"github.com/pquerna/otp/totp"
)

const totpIssuer = "MANAS360-Certificates"

// Enrollment is what an issuer needs to set up an authenticator app
type Enrollment struct {
	Secret string
	URL    string // otpauth:// URL, usually shown as a QR code
}

// EnrollTOTP prepares second factor enrollment for username. An empty
// secret generates a new one; a supplied secret must be base32.
func EnrollTOTP(username, secret string) (*Enrollment, error) {
	if secret == "" {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      totpIssuer,
			AccountName: username,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
		}
		secret = key.Secret()
	} else {
		secret = strings.ToUpper(strings.TrimSpace(secret))
		if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(secret, "=")); err != nil {
			return nil, fmt.Errorf("TOTP secret must be base32: %w", err)
		}
	}

	return &Enrollment{Secret: secret, URL: otpauthURL(secret, username)}, nil
}

func otpauthURL(secret, username string) string {
	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", totpIssuer)

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + totpIssuer + ":" + username,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ValidateTOTP checks code against secret, allowing one period of clock skew
func ValidateTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}
