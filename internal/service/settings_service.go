package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/moodle"
	"math/big"
	"net/url"
	"strings"
)

// Setting keys.
const (
	KeyBaseURL          = "base_url"
	KeyUsername         = "username"
	KeyToken            = "token"
	KeyWebhookSecret    = "webhook_secret"
	KeyDecimalSeparator = "decimal_separator"
	KeyCurrencySymbol   = "currency_symbol"
	KeyPriceMessage     = "price_message"
)

// Pricing defaults.
const (
	DefaultDecimalSeparator = ","
	DefaultCurrencySymbol   = "R$"
	DefaultPriceMessage     = "Em até {price} de {installments}x"
)

const (
	webhookSecretLength   = 32
	webhookSecretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// PricingSettings controls how prices are displayed.
type PricingSettings struct {
	DecimalSeparator string `json:"decimal_separator"`
	CurrencySymbol   string `json:"currency_symbol"`
	PriceMessage     string `json:"price_message"`
}

// Formatter returns a PriceFormatter for these settings.
func (p PricingSettings) Formatter() PriceFormatter {
	return PriceFormatter{DecimalSeparator: p.DecimalSeparator, CurrencySymbol: p.CurrencySymbol, Message: p.PriceMessage}
}

// SettingsService manages connection, pricing and webhook settings.
// It is the credential source of the Moodle client.
type SettingsService struct {
	store SettingsStore
	cache Invalidator
	log   logger.Logger
}

var _ moodle.CredentialSource = (*SettingsService)(nil)

// NewSettingsService creates a new SettingsService.
func NewSettingsService(store SettingsStore, log logger.Logger) *SettingsService {
	if log == nil {
		log = logger.Nop()
	}
	return &SettingsService{store: store, log: log}
}

// SetInvalidator registers the cache that renders prices from the pricing
// settings. It must be called before the service is shared.
func (s *SettingsService) SetInvalidator(cache Invalidator) {
	s.cache = cache
}

// Credentials returns the stored connection settings.
func (s *SettingsService) Credentials(ctx context.Context) (moodle.Credentials, error) {
	values, err := s.store.GetMany(ctx, KeyBaseURL, KeyUsername, KeyToken)
	if err != nil {
		return moodle.Credentials{}, fmt.Errorf("failed to load connection settings: %w", err)
	}
	return moodle.Credentials{
		BaseURL:  values[KeyBaseURL],
		Username: values[KeyUsername],
		Token:    values[KeyToken],
	}, nil
}

// SaveConnection validates and stores the connection settings.
func (s *SettingsService) SaveConnection(ctx context.Context, creds moodle.Credentials) error {
	baseURL, err := normalizeBaseURL(creds.BaseURL)
	if err != nil {
		return err
	}
	username := strings.TrimSpace(creds.Username)
	token := strings.TrimSpace(creds.Token)
	if username == "" {
		return &ValidationError{Field: KeyUsername, Message: "Usuário é obrigatório"}
	}
	if token == "" {
		return &ValidationError{Field: KeyToken, Message: "Token é obrigatório"}
	}

	err = s.store.SetMany(ctx, map[string]string{
		KeyBaseURL:  baseURL,
		KeyUsername: username,
		KeyToken:    token,
	})
	if err != nil {
		return fmt.Errorf("failed to save connection settings: %w", err)
	}
	s.log.With(map[string]interface{}{"base_url": baseURL}).Info("Connection settings saved")
	return nil
}

// SeedConnection stores creds when no connection setting exists yet.
// It reports whether anything was written.
func (s *SettingsService) SeedConnection(ctx context.Context, creds moodle.Credentials) (bool, error) {
	if !creds.Configured() {
		return false, nil
	}
	current, err := s.store.GetMany(ctx, KeyBaseURL, KeyUsername, KeyToken)
	if err != nil {
		return false, fmt.Errorf("failed to load connection settings: %w", err)
	}
	if len(current) > 0 {
		return false, nil
	}
	if err := s.SaveConnection(ctx, creds); err != nil {
		return false, err
	}
	return true, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	invalid := &ValidationError{Field: KeyBaseURL, Message: "URL base inválida: informe um endereço http(s) completo"}
	if raw == "" {
		return "", invalid
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid
	}
	return strings.TrimRight(raw, "/"), nil
}

// PricingSettings returns the display settings with defaults applied.
func (s *SettingsService) PricingSettings(ctx context.Context) (PricingSettings, error) {
	values, err := s.store.GetMany(ctx, KeyDecimalSeparator, KeyCurrencySymbol, KeyPriceMessage)
	if err != nil {
		return PricingSettings{}, fmt.Errorf("failed to load pricing settings: %w", err)
	}
	p := PricingSettings{
		DecimalSeparator: DefaultDecimalSeparator,
		CurrencySymbol:   DefaultCurrencySymbol,
		PriceMessage:     DefaultPriceMessage,
	}
	if v, ok := values[KeyDecimalSeparator]; ok && v != "" {
		p.DecimalSeparator = v
	}
	if v, ok := values[KeyCurrencySymbol]; ok {
		p.CurrencySymbol = v
	}
	if v, ok := values[KeyPriceMessage]; ok && v != "" {
		p.PriceMessage = v
	}
	return p, nil
}

// SavePricing validates and stores the display settings.
func (s *SettingsService) SavePricing(ctx context.Context, p PricingSettings) error {
	if p.DecimalSeparator != "," && p.DecimalSeparator != "." {
		return &ValidationError{Field: KeyDecimalSeparator, Message: "Separador decimal deve ser \",\" ou \".\""}
	}
	p.CurrencySymbol = strings.TrimSpace(p.CurrencySymbol)
	p.PriceMessage = strings.TrimSpace(p.PriceMessage)
	if p.PriceMessage == "" {
		p.PriceMessage = DefaultPriceMessage
	}
	err := s.store.SetMany(ctx, map[string]string{
		KeyDecimalSeparator: p.DecimalSeparator,
		KeyCurrencySymbol:   p.CurrencySymbol,
		KeyPriceMessage:     p.PriceMessage,
	})
	if err != nil {
		return fmt.Errorf("failed to save pricing settings: %w", err)
	}
	// Cached catalog pages carry prices formatted with the old settings.
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return nil
}

// WebhookSecret returns the webhook secret, generating and persisting one
// on first use.
func (s *SettingsService) WebhookSecret(ctx context.Context) (string, error) {
	secret, ok, err := s.store.Get(ctx, KeyWebhookSecret)
	if err != nil {
		return "", fmt.Errorf("failed to load webhook secret: %w", err)
	}
	if ok && secret != "" {
		return secret, nil
	}

	generated, err := generateSecret()
	if err != nil {
		return "", err
	}
	// Concurrent first reads converge on whichever secret was stored first.
	stored, err := s.store.SetIfAbsent(ctx, KeyWebhookSecret, generated)
	if err != nil {
		return "", fmt.Errorf("failed to store webhook secret: %w", err)
	}
	if stored == "" {
		// A blank row exists; replace it.
		if err := s.store.SetMany(ctx, map[string]string{KeyWebhookSecret: generated}); err != nil {
			return "", fmt.Errorf("failed to store webhook secret: %w", err)
		}
		stored = generated
	}
	s.log.Info("Webhook secret generated")
	return stored, nil
}

// RegenerateWebhookSecret replaces the webhook secret.
func (s *SettingsService) RegenerateWebhookSecret(ctx context.Context) (string, error) {
	secret, err := generateSecret()
	if err != nil {
		return "", err
	}
	if err := s.store.SetMany(ctx, map[string]string{KeyWebhookSecret: secret}); err != nil {
		return "", fmt.Errorf("failed to store webhook secret: %w", err)
	}
	s.log.Warn("Webhook secret regenerated")
	return secret, nil
}

// VerifyWebhookToken compares token with the secret in constant time.
func (s *SettingsService) VerifyWebhookToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	secret, err := s.WebhookSecret(ctx)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1, nil
}

func generateSecret() (string, error) {
	limit := big.NewInt(int64(len(webhookSecretAlphabet)))
	b := make([]byte, webhookSecretLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate webhook secret: %w", err)
		}
		b[i] = webhookSecretAlphabet[n.Int64()]
	}
	return string(b), nil
}
