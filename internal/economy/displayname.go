package economy

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Display name bounds.
const (
	MinDisplayNameLen = 3
	MaxDisplayNameLen = 20
)

// ErrInvalidDisplayName is returned for names outside the allowed length.
var ErrInvalidDisplayName = errors.New("display name must be 3 to 20 characters")

// PlaceholderName is the name a profile gets before the player picks one.
func PlaceholderName(id uuid.UUID) string {
	return id.String()[:8]
}

// NeedsDisplayName reports whether name is empty or still the placeholder.
func NeedsDisplayName(name string, id uuid.UUID) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == PlaceholderName(id)
}

// RandomDisplayName generates a Player<n> name with n in [0, 9999].
func RandomDisplayName() string {
	return fmt.Sprintf("Player%d", rand.Intn(10000))
}

// NormalizeDisplayName trims name and checks its length.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinDisplayNameLen || n > MaxDisplayNameLen {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}
