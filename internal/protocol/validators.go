package protocol

// ValidUsername reports whether a username is between 3 and 12 characters
// long and made of ASCII letters and digits only.
func ValidUsername(username string) bool {
	if len(username) < 3 || len(username) > 12 {
		return false
	}
	for _, c := range []byte(username) {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// ValidMessage reports whether a message text is between 1 and 1000 bytes.
// The MESSAGE payload cap of 4096 bytes is a separate wire invariant.
func ValidMessage(message string) bool {
	return len(message) >= 1 && len(message) <= 1000
}
