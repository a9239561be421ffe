//go:build darwin

package config

import "os/exec"

func keychainGet(service, account string) ([]byte, error) {
	return exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
}

func keychainSet(service, account, value string) error {
	return exec.Command(
		"security", "add-generic-password",
		"-U",
		"-s", service,
		"-a", account,
		"-w", value,
	).Run()
}

func apiKeyHint() string {
	return " or macOS Keychain (service: doubtd, account: openai_api_key)"
}
