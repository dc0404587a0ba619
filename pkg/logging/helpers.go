// pkg/logging/helpers.go - event helpers for installer runs

package logging

import "time"

// LogInstallStart logs the start of an msiexec run.
func LogInstallStart(productName, productCode, action string) {
	Info("Starting installer",
		"event", "install_start",
		"product", productName,
		"product_code", productCode,
		"action", action,
	)
}

// LogInstallSkipped logs that a product is already present and nothing ran.
func LogInstallSkipped(productName, productCode string) {
	Info("Product already installed, skipping",
		"event", "install_skipped",
		"product", productName,
		"product_code", productCode,
	)
}

// LogInstallComplete logs a successful msiexec run.
func LogInstallComplete(productName, action string, duration time.Duration) {
	Info("Installer completed",
		"event", "install_complete",
		"product", productName,
		"action", action,
		"duration", duration.Round(time.Millisecond),
	)
}

// LogInstallFailed logs a failed msiexec run.
func LogInstallFailed(productName, action string, err error) {
	Error("Installer failed",
		"event", "install_failed",
		"product", productName,
		"action", action,
		"error", err,
	)
}
