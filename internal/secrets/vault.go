package secrets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/config"
)

// VaultManager reads the start-value lookup credentials from HashiCorp
// Vault's KV v2 engine. When Vault is disabled the manager stays inert and
// the caller falls back to plain environment variables.
type VaultManager struct {
	client *vault.Client
	cfg    *config.Config
	logger *zap.Logger
}

func NewVaultManager(cfg *config.Config, baseLogger *zap.Logger) (*VaultManager, error) {
	log := baseLogger.Named("vault-manager")
	if !cfg.VaultEnabled {
		log.Info("Vault secret manager is disabled via configuration.")
		return &VaultManager{cfg: cfg, logger: log}, nil
	}

	log.Info("Initializing Vault secret manager.", zap.String("address", cfg.VaultAddr))

	vConfig := vault.DefaultConfig()
	vConfig.Address = cfg.VaultAddr
	vConfig.Timeout = 10 * time.Second

	tlsConfig := &vault.TLSConfig{
		CACert:   cfg.VaultCACert,
		Insecure: cfg.VaultSkipVerify,
	}
	if err := vConfig.ConfigureTLS(tlsConfig); err != nil {
		return nil, fmt.Errorf("configuring Vault TLS: %w", err)
	}

	client, err := vault.NewClient(vConfig)
	if err != nil {
		return nil, fmt.Errorf("creating Vault client: %w", err)
	}

	if cfg.VaultToken != "" {
		log.Info("Using Vault token authentication.")
		client.SetToken(cfg.VaultToken)
	} else {
		log.Warn("Vault is enabled but no VAULT_TOKEN is set; only token auth is supported.")
	}

	return &VaultManager{
		client: client,
		cfg:    cfg,
		logger: log,
	}, nil
}

func (m *VaultManager) IsEnabled() bool {
	return m.cfg != nil && m.cfg.VaultEnabled && m.client != nil
}

// GetCredentials reads one KV v2 secret. The password key is mandatory; a
// missing username key is tolerated since Oracle connection strings often
// carry the user themselves.
func (m *VaultManager) GetCredentials(ctx context.Context, path, usernameKey, passwordKey string) (*Credentials, error) {
	if !m.IsEnabled() {
		return nil, fmt.Errorf("vault manager is not enabled or not initialized")
	}
	if path == "" {
		return nil, fmt.Errorf("vault secret path cannot be empty")
	}
	if usernameKey == "" {
		usernameKey = "username"
	}
	if passwordKey == "" {
		passwordKey = "password"
	}

	log := m.logger.With(zap.String("vault_path", path))
	log.Info("Reading lookup credentials from Vault KV v2.",
		zap.String("username_key", usernameKey),
		zap.String("password_key", passwordKey))

	secret, err := m.client.KVv2("secret").Get(ctx, path)
	if err != nil {
		if vaultErr, ok := err.(*vault.ResponseError); ok && vaultErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("secret %q not found in Vault: %w", path, err)
		}
		return nil, fmt.Errorf("reading secret %q from Vault: %w", path, err)
	}

	if secret == nil || secret.Data == nil || secret.Data["data"] == nil {
		return nil, fmt.Errorf("secret data for %q is empty or not in KV v2 format", path)
	}
	secretData, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected format for secret data at %q", path)
	}

	passwordVal, pOk := secretData[passwordKey]
	if !pOk || passwordVal == nil {
		return nil, fmt.Errorf("password key %q not found or null in secret %q", passwordKey, path)
	}
	password, pStrOk := passwordVal.(string)
	if !pStrOk || password == "" {
		return nil, fmt.Errorf("password value for key %q in secret %q is not a non-empty string", passwordKey, path)
	}

	username := ""
	if usernameVal, uOk := secretData[usernameKey]; uOk && usernameVal != nil {
		username, _ = usernameVal.(string)
	}

	log.Info("Lookup credentials retrieved from Vault.")
	return &Credentials{
		Username: username,
		Password: password,
	}, nil
}
