package session

import (
	"fmt"
	"regexp"
)

// A session name doubles as the directory name under
// ~/.wahook/sessions and as the wahookd -session flag value, so the
// alphabet stays filesystem- and shell-safe.
var namePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName rejects names that cannot serve as a session directory.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use lowercase letters, digits, '-' or '_', at most 64 characters", name)
	}
	return nil
}
