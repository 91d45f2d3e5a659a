package ai

import "strings"

var keyNoise = strings.NewReplacer(`\r`, "", `\n`, "", "\r", "", "\n", "", "\t", "")

// normalizeAPIKey strips quoting, a Bearer prefix and pasted control
// characters from a vendor key before it is handed to an SDK.
func normalizeAPIKey(raw string) string {
	key := strings.Trim(strings.TrimSpace(raw), `"'`)
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	const bearer = "bearer "
	if len(key) >= len(bearer) && strings.EqualFold(key[:len(bearer)], bearer) {
		key = strings.TrimSpace(key[len(bearer):])
	}

	key = keyNoise.Replace(key)

	// Visible ASCII only; anything else breaks the Authorization header.
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		if c := key[i]; c >= 33 && c <= 126 {
			b.WriteByte(c)
		}
	}
	return b.String()
}
