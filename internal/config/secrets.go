package config

import (
	"context"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// ================================================
// HashiCorp Vault Integration
// ================================================

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled    bool   // Enable Vault integration
	Address    string // Vault server address (e.g., "https://vault.example.com:8200")
	Token      string // Vault authentication token (from VAULT_TOKEN env var)
	MountPath  string // Secrets mount path (default: "secret")
	SecretPath string // Base path for AutoFinance secrets (e.g., "autofinance/production")
	Namespace  string // Vault namespace (for Vault Enterprise)
}

// VaultClient wraps HashiCorp Vault client for secrets management
type VaultClient struct {
	client *vault.Client
	config VaultConfig
}

// NewVaultClient creates a new Vault client from configuration
func NewVaultClient(cfg VaultConfig) (*VaultClient, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("vault is not enabled in configuration")
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if cfg.Token == "" {
		cfg.Token = os.Getenv("VAULT_TOKEN")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("VAULT_TOKEN not set for token authentication")
	}
	client.SetToken(cfg.Token)

	log.Info().
		Str("address", cfg.Address).
		Str("mount_path", cfg.MountPath).
		Str("secret_path", cfg.SecretPath).
		Msg("Vault client initialized")

	return &VaultClient{
		client: client,
		config: cfg,
	}, nil
}

// GetSecret retrieves a secret from Vault
// path is relative to the configured SecretPath
func (vc *VaultClient) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	fullPath := fmt.Sprintf("%s/data/%s/%s", vc.config.MountPath, vc.config.SecretPath, path)

	log.Debug().Str("path", fullPath).Msg("Reading secret from Vault")

	secret, err := vc.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("secret not found at path: %s", fullPath)
	}

	// KV v2 nests payloads under "data"
	if data, ok := secret.Data["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return secret.Data, nil
}

// GetSecretString retrieves a single string value from Vault
func (vc *VaultClient) GetSecretString(ctx context.Context, path string, key string) (string, error) {
	data, err := vc.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}

	value, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("secret key '%s' not found or not a string at path: %s", key, path)
	}
	return value, nil
}

// LoadSecretsFromVault overlays Vault secrets onto the configuration.
// Missing paths are tolerated so deployments can keep part of their secrets
// in plain environment variables.
func LoadSecretsFromVault(ctx context.Context, cfg *Config, vaultCfg VaultConfig) error {
	if !vaultCfg.Enabled {
		log.Info().Msg("Vault integration disabled - using environment variables for secrets")
		return nil
	}

	vaultClient, err := NewVaultClient(vaultCfg)
	if err != nil {
		return fmt.Errorf("failed to create Vault client: %w", err)
	}

	if err := loadNotifySecrets(ctx, vaultClient, cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to load notification secrets from Vault")
	}
	if err := loadProviderSecrets(ctx, vaultClient, cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to load provider secrets from Vault")
	}
	if err := loadDatabaseSecrets(ctx, vaultClient, cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to load database secrets from Vault")
	}

	log.Info().Msg("Secrets loaded from Vault")
	return nil
}

// loadNotifySecrets loads notification channel credentials from Vault
func loadNotifySecrets(ctx context.Context, vc *VaultClient, cfg *Config) error {
	secrets, err := vc.GetSecret(ctx, "notify")
	if err != nil {
		return err
	}

	overlay := func(dst *string, key string) {
		if v, ok := secrets[key].(string); ok && v != "" {
			*dst = v
		}
	}

	overlay(&cfg.Notify.DiscordWebhookURL, "discord_webhook_url")
	overlay(&cfg.Notify.SlackWebhookURL, "slack_webhook_url")
	overlay(&cfg.Notify.SlackBotToken, "slack_bot_token")
	overlay(&cfg.Notify.WebhookURL, "webhook_url")
	overlay(&cfg.Notify.SMTPPassword, "smtp_password")
	overlay(&cfg.Notify.TelegramBotToken, "telegram_bot_token")
	return nil
}

// loadProviderSecrets loads market and LLM provider keys from Vault
func loadProviderSecrets(ctx context.Context, vc *VaultClient, cfg *Config) error {
	secrets, err := vc.GetSecret(ctx, "providers")
	if err != nil {
		return err
	}

	if key, ok := secrets["binance_api_key"].(string); ok && key != "" {
		cfg.Market.BinanceAPIKey = key
	}
	if key, ok := secrets["binance_secret_key"].(string); ok && key != "" {
		cfg.Market.BinanceSecretKey = key
	}
	if key, ok := secrets["llm_api_key"].(string); ok && key != "" {
		cfg.LLM.APIKey = key
	}
	return nil
}

// loadDatabaseSecrets loads audit database credentials from Vault
func loadDatabaseSecrets(ctx context.Context, vc *VaultClient, cfg *Config) error {
	secrets, err := vc.GetSecret(ctx, "database")
	if err != nil {
		return err
	}

	if password, ok := secrets["password"].(string); ok && password != "" {
		cfg.Database.Password = password
	}
	if user, ok := secrets["user"].(string); ok && user != "" {
		cfg.Database.User = user
	}
	return nil
}

// GetVaultConfigFromEnv creates VaultConfig from environment variables
func GetVaultConfigFromEnv() VaultConfig {
	if os.Getenv("VAULT_ADDR") == "" {
		return VaultConfig{Enabled: false}
	}

	return VaultConfig{
		Enabled:    true,
		Address:    os.Getenv("VAULT_ADDR"),
		Token:      os.Getenv("VAULT_TOKEN"),
		MountPath:  getEnvOrDefault("VAULT_MOUNT_PATH", "secret"),
		SecretPath: getEnvOrDefault("VAULT_SECRET_PATH", "autofinance/production"),
		Namespace:  os.Getenv("VAULT_NAMESPACE"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
