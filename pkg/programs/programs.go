// Package programs lists installed software from the registry uninstall keys.
package programs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-version"

	"github.com/windowsadmins/msikit/pkg/logging"
	"github.com/windowsadmins/msikit/pkg/registry"
	"github.com/windowsadmins/msikit/pkg/wildcard"
)

const (
	regUninstallRootDefault   = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`
	regUninstallRootWow64     = `SOFTWARE\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall`
	regUninstallRelativeUsers = `Software\Microsoft\Windows\CurrentVersion\Uninstall`
)

// Scope tells which uninstall root a program was found under.
type Scope string

const (
	ScopeMachine      Scope = "machine"
	ScopeMachineWow64 Scope = "machine-wow64"
	ScopeUser         Scope = "user"
)

// InstalledProgram is one uninstall key.
type InstalledProgram struct {
	DisplayName          string           `json:"DisplayName" yaml:"DisplayName"`
	ProductCode          *uuid.UUID       `json:"ProductCode" yaml:"ProductCode"`
	Publisher            string           `json:"Publisher,omitempty" yaml:"Publisher,omitempty"`
	DisplayVersion       string           `json:"DisplayVersion,omitempty" yaml:"DisplayVersion,omitempty"`
	Version              *version.Version `json:"Version" yaml:"Version"`
	InstallDate          *time.Time       `json:"InstallDate" yaml:"InstallDate"`
	EstimatedSize        uint64           `json:"EstimatedSize,omitempty" yaml:"EstimatedSize,omitempty"` // KiB
	InstallLocation      string           `json:"InstallLocation,omitempty" yaml:"InstallLocation,omitempty"`
	InstallSource        string           `json:"InstallSource,omitempty" yaml:"InstallSource,omitempty"`
	UninstallString      string           `json:"UninstallString,omitempty" yaml:"UninstallString,omitempty"`
	QuietUninstallString string           `json:"QuietUninstallString,omitempty" yaml:"QuietUninstallString,omitempty"`
	ModifyPath           string           `json:"ModifyPath,omitempty" yaml:"ModifyPath,omitempty"`
	Comments             string           `json:"Comments,omitempty" yaml:"Comments,omitempty"`
	HelpLink             string           `json:"HelpLink,omitempty" yaml:"HelpLink,omitempty"`
	URLInfoAbout         string           `json:"URLInfoAbout,omitempty" yaml:"URLInfoAbout,omitempty"`
	Language             *int             `json:"Language,omitempty" yaml:"Language,omitempty"`
	WindowsInstaller     bool             `json:"WindowsInstaller" yaml:"WindowsInstaller"`
	Scope                Scope            `json:"Scope" yaml:"Scope"`
	RegistryPath         string           `json:"RegistryPath" yaml:"RegistryPath"`
	User                 string           `json:"User,omitempty" yaml:"User,omitempty"`
}

// NotFoundError is returned when a literal name or a product code matches nothing.
type NotFoundError struct {
	Name        string
	ProductCode string
}

func (e *NotFoundError) Error() string {
	if e.ProductCode != "" {
		return fmt.Sprintf("no installed program with product code %s", e.ProductCode)
	}
	return fmt.Sprintf("no installed program named %q", e.Name)
}

// AccountResolver maps a user SID to an account name.
type AccountResolver interface {
	LookupAccount(sid string) (string, error)
}

// Lookup walks the machine and per-user uninstall roots.
type Lookup struct {
	Registry registry.Registry
	Accounts AccountResolver
	// IgnoreNotFound returns an empty result instead of a NotFoundError.
	IgnoreNotFound bool
}

// NewLookup returns a Lookup over reg that resolves SIDs through the system.
func NewLookup(reg registry.Registry) *Lookup {
	return &Lookup{Registry: reg, Accounts: NewAccountResolver()}
}

type root struct {
	hive  registry.Hive
	path  string
	scope Scope
	sid   string
}

// List returns every installed program whose DisplayName matches nameFilter,
// a case-insensitive wildcard. An empty filter matches everything. A literal
// filter that matches nothing yields a NotFoundError unless IgnoreNotFound is set.
func (l *Lookup) List(ctx context.Context, nameFilter string) ([]InstalledProgram, error) {
	if nameFilter == "" {
		nameFilter = "*"
	}
	match, err := wildcard.Compile(nameFilter, false)
	if err != nil {
		return nil, err
	}

	programs := []InstalledProgram{}
	for _, r := range l.roots() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := l.readRoot(ctx, r, match)
		if err != nil {
			logging.Debug("Skipping unreadable uninstall root", "hive", string(r.hive), "path", r.path, "error", err)
			continue
		}
		programs = append(programs, found...)
	}

	sort.SliceStable(programs, func(i, j int) bool {
		a, b := programs[i].DisplayName, programs[j].DisplayName
		if la, lb := strings.ToLower(a), strings.ToLower(b); la != lb {
			return la < lb
		}
		return a < b
	})

	if len(programs) == 0 && !wildcard.ContainsMeta(nameFilter) && !l.IgnoreNotFound {
		return nil, &NotFoundError{Name: nameFilter}
	}
	return programs, nil
}

// FindByProductCode returns the program registered under code.
func (l *Lookup) FindByProductCode(ctx context.Context, code uuid.UUID) (*InstalledProgram, error) {
	all, err := (&Lookup{Registry: l.Registry, Accounts: l.Accounts, IgnoreNotFound: true}).List(ctx, "*")
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ProductCode != nil && *all[i].ProductCode == code {
			return &all[i], nil
		}
	}
	return nil, &NotFoundError{ProductCode: "{" + strings.ToUpper(code.String()) + "}"}
}

func (l *Lookup) roots() []root {
	roots := []root{
		{hive: registry.LocalMachine, path: regUninstallRootDefault, scope: ScopeMachine},
		{hive: registry.LocalMachine, path: regUninstallRootWow64, scope: ScopeMachineWow64},
	}

	users, err := l.Registry.OpenKey(registry.Users, "")
	if err != nil {
		logging.Debug("Unable to open HKU", "error", err)
		return roots
	}
	defer users.Close()

	sids, err := users.SubKeyNames()
	if err != nil {
		logging.Debug("Unable to enumerate HKU", "error", err)
		return roots
	}
	for _, sid := range sids {
		if strings.HasSuffix(strings.ToLower(sid), "_classes") {
			continue
		}
		roots = append(roots, root{
			hive:  registry.Users,
			path:  sid + `\` + regUninstallRelativeUsers,
			scope: ScopeUser,
			sid:   sid,
		})
	}
	return roots
}

func (l *Lookup) readRoot(ctx context.Context, r root, match wildcard.Matcher) ([]InstalledProgram, error) {
	key, err := l.Registry.OpenKey(r.hive, r.path)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	subKeys, err := key.SubKeyNames()
	if err != nil {
		return nil, err
	}

	var user string
	if r.sid != "" {
		user = l.accountName(r.sid)
	}

	var found []InstalledProgram
	for _, name := range subKeys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok, err := l.readProgram(r, name, match)
		if err != nil {
			logging.Debug("Unable to read uninstall key", "path", r.path+`\`+name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		p.User = user
		found = append(found, p)
	}
	return found, nil
}

func (l *Lookup) readProgram(r root, name string, match wildcard.Matcher) (InstalledProgram, bool, error) {
	path := r.path + `\` + name
	k, err := l.Registry.OpenKey(r.hive, path)
	if err != nil {
		return InstalledProgram{}, false, err
	}
	defer k.Close()

	displayName, err := k.StringValue("DisplayName")
	if err != nil || displayName == "" {
		return InstalledProgram{}, false, nil
	}
	if registry.HasValue(k, "ParentKeyName") {
		return InstalledProgram{}, false, nil
	}
	// Presence alone hides the entry, so SystemComponent=0 is hidden too.
	if registry.HasValue(k, "SystemComponent") {
		return InstalledProgram{}, false, nil
	}
	if !match.Match(displayName) {
		return InstalledProgram{}, false, nil
	}

	str := func(value string) string {
		s, _ := k.StringValue(value)
		return s
	}
	p := InstalledProgram{
		DisplayName:          displayName,
		ProductCode:          parseProductCode(name),
		Publisher:            str("Publisher"),
		DisplayVersion:       str("DisplayVersion"),
		InstallLocation:      str("InstallLocation"),
		InstallSource:        str("InstallSource"),
		UninstallString:      str("UninstallString"),
		QuietUninstallString: str("QuietUninstallString"),
		ModifyPath:           str("ModifyPath"),
		Comments:             str("Comments"),
		HelpLink:             str("HelpLink"),
		URLInfoAbout:         str("URLInfoAbout"),
		InstallDate:          parseInstallDate(str("InstallDate")),
		Scope:                r.scope,
		RegistryPath:         string(r.hive) + `\` + path,
	}

	p.Version = parseDisplayVersion(p.DisplayVersion)
	if p.Version == nil {
		if packed, err := k.IntegerValue("Version"); err == nil {
			p.Version = unpackVersion(packed)
		}
	}
	if size, err := k.IntegerValue("EstimatedSize"); err == nil {
		p.EstimatedSize = size
	}
	if lang, err := k.IntegerValue("Language"); err == nil {
		n := int(lang)
		p.Language = &n
	}
	if wi, err := k.IntegerValue("WindowsInstaller"); err == nil {
		p.WindowsInstaller = wi == 1
	}
	return p, true, nil
}

// accountName never fails; an unresolvable SID is returned as is.
func (l *Lookup) accountName(sid string) string {
	if l.Accounts == nil {
		return sid
	}
	name, err := l.Accounts.LookupAccount(sid)
	if err != nil || name == "" {
		logging.Debug("Unable to resolve SID", "sid", sid, "error", err)
		return sid
	}
	return name
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
