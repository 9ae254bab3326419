package roster

import (
	"math/rand"
	"regexp"
	"strings"
)

var rfidPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{4}$`)

// NormalizeRFID trims and upper-cases a scanned code.
func NormalizeRFID(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRFID reports whether code (already normalized) has the card format.
func ValidRFID(code string) bool {
	return rfidPattern.MatchString(code)
}

// randomRFID draws a code in the card format.
func randomRFID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 6)
	b[0] = letters[rand.Intn(len(letters))]
	b[1] = letters[rand.Intn(len(letters))]
	for i := 2; i < 6; i++ {
		b[i] = byte('0' + rand.Intn(10))
	}
	return string(b)
}
