package secrets

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

var defaultSecretFields = []string{
	"password", "password_sealed", "Password", "PasswordSealed",
	"token", "api_key", "secret",
}

func init() {
	// Register secret-ish fields so masking uses sane defaults.
	for _, field := range defaultSecretFields {
		masker.Default.RegisterMaskField(field, "preserveEnds(2,2)")
	}
}

// Mask hides all but the ends of a secret value for safe logging.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if masked, err := masker.Default.String("preserveEnds(2,2)", value); err == nil {
		return masked
	}
	// Fallback masking if no rule is registered.
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}

// MaskValues returns a masked copy of the provided map. Keys registered as
// secret fields are masked; other values pass through.
func MaskValues(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, val := range values {
		if isSecretField(key) {
			out[key] = Mask(val)
			continue
		}
		out[key] = val
	}
	return out
}

func isSecretField(key string) bool {
	lower := strings.ToLower(key)
	for _, field := range defaultSecretFields {
		if lower == strings.ToLower(field) {
			return true
		}
	}
	return false
}
