//go:build windows

package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"golang.org/x/sys/windows/registry"
)

// loadPolicy overlays values found under HKLM\SOFTWARE\Policies\msikit.
func loadPolicy(cfg *Configuration) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, PolicyRegistryPath, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return ErrNoPolicy
	}
	if err != nil {
		return fmt.Errorf("failed to open policy registry key %s: %w", PolicyRegistryPath, err)
	}
	defer key.Close()

	loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel)
	loadStringFromRegistry(key, "LogDir", &cfg.LogDir)
	loadStringFromRegistry(key, "DownloadDir", &cfg.DownloadDir)
	loadStringFromRegistry(key, "MsiexecPath", &cfg.MsiexecPath)
	loadStringFromRegistry(key, "DisplayMode", &cfg.DisplayMode)
	loadStringFromRegistry(key, "LogOptions", &cfg.LogOptions)
	loadStringFromRegistry(key, "UserAgent", &cfg.UserAgent)

	loadIntFromRegistry(key, "DownloadTimeoutSeconds", &cfg.DownloadTimeoutSeconds)
	loadIntFromRegistry(key, "ReleaseTimeoutMs", &cfg.ReleaseTimeoutMs)
	loadIntFromRegistry(key, "ReleaseIntervalMs", &cfg.ReleaseIntervalMs)
	loadIntFromRegistry(key, "SessionRetentionDays", &cfg.SessionRetentionDays)
	loadIntFromRegistry(key, "SessionRetentionHours", &cfg.SessionRetentionHours)

	loadBoolFromRegistry(key, "ForceGC", &cfg.ForceGC)
	return nil
}

// loadStringFromRegistry loads a string value from registry if it exists.
func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
		log.Printf("policy: loaded %s = %s", valueName, val)
	}
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" or a DWORD.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
	}
}

// loadIntFromRegistry loads an integer stored either as a string or a DWORD.
func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
	}
}
