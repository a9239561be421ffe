package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const tokenAccount = "api_token"

// Keychain is read/write access to the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type platformKeychain struct{}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain {
	return platformKeychain{}
}

// GetAPIToken returns the bearer token used by the CLI to talk to the local
// daemon when auth is enabled, generating and storing one on first use.
func GetAPIToken(kc Keychain) (string, error) {
	if token, err := kc.Get(keychainService, tokenAccount); err == nil && token != "" {
		return token, nil
	}

	token := uuid.New().String()
	if err := kc.Set(keychainService, tokenAccount, token); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return token, nil
}
