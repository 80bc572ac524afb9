package auth

import (
	"os"
	"strings"
)

// EnvAPIKey returns IDLEDATA_API_KEY, falling back to API_KEY
func EnvAPIKey() string {
	for _, name := range []string{"IDLEDATA_API_KEY", "API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// EnvironmentStore implements a read-only CredentialStore over the
// environment. Every profile resolves to the same key.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment key under the requested profile
func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	key := EnvAPIKey()
	if key == "" {
		return nil, ErrCredentialsNotFound
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &Credential{Profile: profile, APIKey: key}, nil
}

// List returns the environment key as the default profile
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultProfile)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists reports whether an API key is set in the environment
func (e *EnvironmentStore) Exists(profile string) bool {
	return EnvAPIKey() != ""
}
