//go:build windows

package programs

import (
	"fmt"

	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"
)

// Win32_UserAccount is the subset of the WMI class used for SID lookups.
type Win32_UserAccount struct {
	Name   string
	Domain string
}

type systemAccounts struct{}

// NewAccountResolver resolves SIDs with LookupAccountSid, then WMI.
func NewAccountResolver() AccountResolver {
	return systemAccounts{}
}

func (systemAccounts) LookupAccount(sidString string) (string, error) {
	sid, err := windows.StringToSid(sidString)
	if err != nil {
		return "", fmt.Errorf("invalid SID %s: %w", sidString, err)
	}
	account, domain, _, err := sid.LookupAccount("")
	if err == nil {
		return qualify(domain, account), nil
	}

	// StringToSid accepted the value, so it is safe to embed in the query.
	var users []Win32_UserAccount
	query := fmt.Sprintf("SELECT Name, Domain FROM Win32_UserAccount WHERE SID = '%s'", sid.String())
	if werr := wmi.Query(query, &users); werr != nil {
		return "", fmt.Errorf("lookup of %s failed: %w (wmi: %v)", sidString, err, werr)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("lookup of %s failed: %w", sidString, err)
	}
	return qualify(users[0].Domain, users[0].Name), nil
}

func qualify(domain, account string) string {
	if domain == "" {
		return account
	}
	return domain + `\` + account
}
