package secrets

import "context"

// Credentials is one username/password pair for the start-value lookup
// database. Username may be empty when the connection string carries it.
type Credentials struct {
	Username string
	Password string
}

// SecretManager supplies credentials for the identity start-value lookup
// database without putting the password in the environment or on disk.
type SecretManager interface {
	// GetCredentials reads the secret at path and extracts the username and
	// password under the given keys.
	GetCredentials(ctx context.Context, path string, usernameKey string, passwordKey string) (*Credentials, error)

	// IsEnabled reports whether this backend is configured and usable.
	IsEnabled() bool
}
