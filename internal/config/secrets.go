package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// VaultConfig holds the connection settings for the secrets backend
type VaultConfig struct {
	Address   string // e.g. "https://vault.example.com:8200"
	Token     string
	Namespace string
	MountPath string // KV v2 mount, default "secret"
}

// VaultClient wraps the vault API client for secret reads
type VaultClient struct {
	client *vault.Client
	mount  string
}

// NewVaultClient creates a client against the configured vault server
func NewVaultClient(cfg VaultConfig) (*VaultClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("vault address is required")
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	return &VaultClient{client: client, mount: mount}, nil
}

// GetSecret reads the data map at a KV v2 path
func (vc *VaultClient) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	secret, err := vc.client.KVv2(vc.mount).Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s not found", path)
	}
	return secret.Data, nil
}

// GetSecretString reads one string value from a KV v2 path
func (vc *VaultClient) GetSecretString(ctx context.Context, path, key string) (string, error) {
	data, err := vc.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}
	value, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("secret %s has no string key %q", path, key)
	}
	return value, nil
}

// LoadSecretsFromVault fills credential fields from vault. Missing vault
// entries fall back to environment variables; absent credentials leave the
// config value untouched.
func LoadSecretsFromVault(ctx context.Context, cfg *Config, vaultCfg VaultConfig) error {
	vc, err := NewVaultClient(vaultCfg)
	if err != nil {
		return err
	}

	loadDatabaseSecrets(ctx, vc, cfg)
	loadLLMSecrets(ctx, vc, cfg)
	loadMarketplaceSecrets(ctx, vc, cfg)

	log.Info().Msg("Secrets loaded from vault")
	return nil
}

func loadDatabaseSecrets(ctx context.Context, vc *VaultClient, cfg *Config) {
	if password, err := vc.GetSecretString(ctx, "flipsync/database", "password"); err == nil {
		cfg.Database.Password = password
		return
	}
	applyEnvFallback(&cfg.Database.Password, "FLIPSYNC_DATABASE_PASSWORD", "database password")
}

func loadLLMSecrets(ctx context.Context, vc *VaultClient, cfg *Config) {
	if key, err := vc.GetSecretString(ctx, "flipsync/llm", "api_key"); err == nil {
		cfg.LLM.APIKey = key
		return
	}
	applyEnvFallback(&cfg.LLM.APIKey, "FLIPSYNC_LLM_API_KEY", "llm api key")
}

func loadMarketplaceSecrets(ctx context.Context, vc *VaultClient, cfg *Config) {
	for name, mc := range cfg.Marketplaces {
		if !mc.Enabled {
			continue
		}
		path := "flipsync/marketplaces/" + name
		if data, err := vc.GetSecret(ctx, path); err == nil {
			if key, ok := data["api_key"].(string); ok {
				mc.APIKey = key
			}
			if secret, ok := data["api_secret"].(string); ok {
				mc.APISecret = secret
			}
			cfg.Marketplaces[name] = mc
			continue
		}

		prefix := "FLIPSYNC_" + strings.ToUpper(name)
		applyEnvFallback(&mc.APIKey, prefix+"_API_KEY", name+" api key")
		applyEnvFallback(&mc.APISecret, prefix+"_API_SECRET", name+" api secret")
		cfg.Marketplaces[name] = mc
	}
}

// applyEnvFallback fills dst from the environment when vault had nothing
func applyEnvFallback(dst *string, envKey, what string) {
	if value := os.Getenv(envKey); value != "" {
		*dst = value
		log.Debug().Str("env", envKey).Msgf("Loaded %s from environment", what)
	}
}

// GetVaultConfigFromEnv builds a VaultConfig from standard env variables
func GetVaultConfigFromEnv() VaultConfig {
	return VaultConfig{
		Address:   os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		MountPath: getEnvOrDefault("VAULT_MOUNT_PATH", "secret"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
