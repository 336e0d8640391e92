package models

import "regexp"

// Signup and password-reset validation rules. A username must start with a
// letter, a password needs letters, digits and a special char at length >= 8.
var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z]`)
	passwordRegex = []*regexp.Regexp{
		regexp.MustCompile(`[A-Za-z]`),
		regexp.MustCompile(`\d`),
		regexp.MustCompile(`[@$!%*?&]`),
	}
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func ValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidPassword checks the complexity policy. Go's regexp has no lookahead,
// so each required character class is matched separately.
func ValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	for _, re := range passwordRegex {
		if !re.MatchString(password) {
			return false
		}
	}
	return true
}
