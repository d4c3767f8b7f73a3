package merchantd

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	claimTokenPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)
	promoCodePattern  = regexp.MustCompile(`^[A-Za-z0-9]{6,8}$`)
)

// ValidateClaimToken checks the one-time claim token shape before any network
// call is made. Tokens are 32 lowercase hex characters.
func ValidateClaimToken(token string) error {
	if !claimTokenPattern.MatchString(token) {
		return ErrInvalidTokenFormat
	}
	return nil
}

// NormalizePromoCode trims and uppercases a promo or referral code and checks
// its shape. Codes are 6 to 8 alphanumeric characters.
func NormalizePromoCode(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if !promoCodePattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCodeFormat, trimmed)
	}
	return strings.ToUpper(trimmed), nil
}
