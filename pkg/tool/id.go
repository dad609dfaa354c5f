package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time ordered id, so ids sort by creation time.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsUUID reports whether s parses as a UUID in any of the standard forms.
func IsUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
