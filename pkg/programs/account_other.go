//go:build !windows

package programs

import "errors"

type noAccounts struct{}

// NewAccountResolver returns a resolver that always fails off Windows, so
// SIDs are reported as is.
func NewAccountResolver() AccountResolver {
	return noAccounts{}
}

func (noAccounts) LookupAccount(string) (string, error) {
	return "", errors.New("account lookup is only available on Windows")
}
