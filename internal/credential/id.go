package credential

import (
	"regexp"

	"github.com/flowforge/runtime/pkg/errors"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateID enforces the CredentialId grammar: non-empty, charset
// [A-Za-z0-9_-], length <= 128.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return errors.Validation("credential_id", "must match [A-Za-z0-9_-]{1,128}")
	}
	return nil
}
