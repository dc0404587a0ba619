package programs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
)

// installDateLayouts are tried after the canonical yyyyMMdd form. Some
// installers write the date in the locale of the installing user.
var installDateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"2.1.2006",
	"02.01.2006",
	"2006/01/02",
	"Mon 01/02/2006",
}

// parseProductCode accepts braced and bare GUID key names.
func parseProductCode(keyName string) *uuid.UUID {
	id, err := uuid.Parse(keyName)
	if err != nil {
		return nil
	}
	return &id
}

func parseDisplayVersion(s string) *version.Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := version.NewVersion(s)
	if err != nil {
		return nil
	}
	return v
}

// unpackVersion decodes the DWORD Version value: major in the top byte,
// minor in the next, build in the low word.
func unpackVersion(packed uint64) *version.Version {
	major := (packed >> 24) & 0xFF
	minor := (packed >> 16) & 0xFF
	build := packed & 0xFFFF
	v, err := version.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, build))
	if err != nil {
		return nil
	}
	return v
}

func parseInstallDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) == 8 {
		if t, err := time.ParseInLocation("20060102", s, time.Local); err == nil {
			return &t
		}
	}
	for _, layout := range installDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}
