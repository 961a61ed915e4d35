package config

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/utils"
)

type Config struct {
	AppName         string
	AppPort         string
	AppUrl          string
	UniqueRunNumber string
	UniqueRunnerID  string

	// Database
	DBUrl string

	DefaultTimeZone string

	// Payments
	PaymentProvider        string
	MercadoPagoAccessToken string
	StripeSecretKey        string
	BillingCronSpec        string

	// Twilio / SendGrid for completion and failed-charge notices
	TwilioAccountSID string
	TwilioAuthToken  string
	SendGridAPIKey   string

	// DynamoDB receipt archive, disabled when ReceiptsTable is empty
	ReceiptsTable      string
	AWSRegion          string
	AWSEndpoint        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// Auth
	RSAPublicKey *rsa.PublicKey

	// LaunchDarkly flags
	LDFlag_UsingIsolatedSchema bool
	LDFlag_SeedDbWithTestData  bool
	LDFlag_SendgridSandboxMode bool
	LDFlag_BillingCronEnabled  bool
	LDFlag_CORSHighSecurity    bool
	LDFlag_PaymentGatewayMock  bool
	LDFlag_SendgridFromEmail   string
	LDFlag_TwilioFromPhone     string
	LDFlag_OrganizationName    string
}

const (
	DefaultAppName         = "backoffice-service"
	DefaultOrganization    = "Backoffice"
	DefaultLDContextKind   = "service"
	LDConnectionTimeout    = 5 * time.Second
	defaultAWSRegion       = "us-east-1"
	defaultPaymentProvider = constants.PaymentProviderMercadoPago
)

// build-time overrides
var (
	AppName             string
	UniqueRunNumber     string
	UniqueRunnerID      string
	LDServerContextKey  string
	LDServerContextKind string
)

// LoadConfig reads the process environment and, when LD_SDK_KEY is set,
// overrides flag defaults with LaunchDarkly. Any missing required value is
// fatal.
func LoadConfig() *Config {
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid configuration")
	}
	utils.Logger.Info("Loading config for app: ", cfg.AppName)

	if key := os.Getenv("LD_SDK_KEY"); key != "" {
		if err := loadLaunchDarklyFlags(cfg, key); err != nil {
			utils.Logger.WithError(err).Fatal("Failed to evaluate LaunchDarkly flags")
		}
	} else {
		utils.Logger.Warn("LD_SDK_KEY not set, using flag defaults from env")
	}

	if err := cfg.validatePayments(); err != nil {
		utils.Logger.WithError(err).Fatal("Invalid payment configuration")
	}
	return cfg
}

// FromEnv builds a Config from getenv without contacting any external
// service. Flags take their defaults from same-named upper-case env vars.
func FromEnv(getenv func(string) string) (*Config, error) {
	appName := AppName
	if appName == "" {
		appName = DefaultAppName
	}

	required := func(name string) (string, error) {
		v := strings.TrimSpace(getenv(name))
		if v == "" {
			return "", fmt.Errorf("%s env var is missing", name)
		}
		return v, nil
	}

	appPort, err := required("APP_PORT")
	if err != nil {
		return nil, err
	}
	dbURL, err := required("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	pubB64, err := required("RSA_PUBLIC_KEY_BASE64")
	if err != nil {
		return nil, err
	}
	pubKey, err := ParseRSAPublicKeyBase64(pubB64)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppName:         appName,
		AppPort:         appPort,
		AppUrl:          getenv("APP_URL_FROM_ANYWHERE"),
		UniqueRunNumber: UniqueRunNumber,
		UniqueRunnerID:  UniqueRunnerID,
		DBUrl:           dbURL,
		DefaultTimeZone: orDefault(getenv("DEFAULT_TIMEZONE"), constants.DefaultTimeZone),

		PaymentProvider:        strings.ToLower(orDefault(getenv("PAYMENT_PROVIDER"), defaultPaymentProvider)),
		MercadoPagoAccessToken: getenv("MERCADOPAGO_ACCESS_TOKEN"),
		StripeSecretKey:        getenv("STRIPE_SECRET_KEY"),
		BillingCronSpec:        orDefault(getenv("BILLING_CRON_SPEC"), constants.DefaultBillingCronSpec),

		TwilioAccountSID: getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  getenv("TWILIO_AUTH_TOKEN"),
		SendGridAPIKey:   getenv("SENDGRID_API_KEY"),

		ReceiptsTable:      getenv("RECEIPTS_TABLE"),
		AWSRegion:          orDefault(getenv("AWS_REGION"), defaultAWSRegion),
		AWSEndpoint:        getenv("AWS_ENDPOINT"),
		AWSAccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),

		RSAPublicKey: pubKey,

		LDFlag_SendgridFromEmail: orDefault(getenv("SENDGRID_FROM_EMAIL"), constants.DefaultFromEmail),
		LDFlag_TwilioFromPhone:   orDefault(getenv("TWILIO_FROM_PHONE"), constants.DefaultFromPhone),
		LDFlag_OrganizationName:  orDefault(getenv("ORGANIZATION_NAME"), DefaultOrganization),
	}

	bools := []struct {
		env string
		dst *bool
		def bool
	}{
		{"USING_ISOLATED_SCHEMA", &cfg.LDFlag_UsingIsolatedSchema, false},
		{"SEED_DB_WITH_TEST_DATA", &cfg.LDFlag_SeedDbWithTestData, false},
		{"SENDGRID_SANDBOX_MODE", &cfg.LDFlag_SendgridSandboxMode, true},
		{"BILLING_CRON_ENABLED", &cfg.LDFlag_BillingCronEnabled, true},
		{"CORS_HIGH_SECURITY", &cfg.LDFlag_CORSHighSecurity, false},
		{"PAYMENT_GATEWAY_MOCK", &cfg.LDFlag_PaymentGatewayMock, false},
	}
	for _, b := range bools {
		*b.dst = b.def
		raw := strings.TrimSpace(getenv(b.env))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean: %w", b.env, err)
		}
		*b.dst = v
	}
	return cfg, nil
}

// ParseRSAPublicKeyBase64 decodes a base64-wrapped PEM public key.
func ParseRSAPublicKeyBase64(b64 string) (*rsa.PublicKey, error) {
	pubPEM, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("RSA_PUBLIC_KEY_BASE64 is not base64: %w", err)
	}
	if block, _ := pem.Decode(pubPEM); block == nil {
		return nil, errors.New("failed to decode PEM block for public key")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	return pubKey, nil
}

// EffectivePaymentProvider resolves the gateway to build: the mock flag wins
// over PAYMENT_PROVIDER.
func (c *Config) EffectivePaymentProvider() string {
	if c.LDFlag_PaymentGatewayMock {
		return constants.PaymentProviderMock
	}
	return c.PaymentProvider
}

func (c *Config) validatePayments() error {
	switch c.EffectivePaymentProvider() {
	case constants.PaymentProviderMock:
		return nil
	case constants.PaymentProviderMercadoPago:
		if c.MercadoPagoAccessToken == "" {
			return errors.New("MERCADOPAGO_ACCESS_TOKEN is required for the mercadopago provider")
		}
	case constants.PaymentProviderStripe:
		if c.StripeSecretKey == "" {
			return errors.New("STRIPE_SECRET_KEY is required for the stripe provider")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	return nil
}

func loadLaunchDarklyFlags(cfg *Config, sdkKey string) error {
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		return fmt.Errorf("creating LaunchDarkly client: %w", err)
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		return errors.New("LaunchDarkly client failed to initialize")
	}

	key := LDServerContextKey
	if key == "" {
		key = cfg.AppName
	}
	kind := LDServerContextKind
	if kind == "" {
		kind = DefaultLDContextKind
	}
	ctx := ldcontext.NewWithKind(ldcontext.Kind(kind), key)

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"using_isolated_schema", &cfg.LDFlag_UsingIsolatedSchema},
		{"seed_db_with_test_data", &cfg.LDFlag_SeedDbWithTestData},
		{"sendgrid_sandbox_mode", &cfg.LDFlag_SendgridSandboxMode},
		{"billing_cron_enabled", &cfg.LDFlag_BillingCronEnabled},
		{"cors_high_security", &cfg.LDFlag_CORSHighSecurity},
		{"payment_gateway_mock", &cfg.LDFlag_PaymentGatewayMock},
	}
	for _, f := range boolFlags {
		v, err := ldClient.BoolVariation(f.name, ctx, *f.dst)
		if err != nil {
			return fmt.Errorf("retrieving %s flag: %w", f.name, err)
		}
		utils.Logger.Debugf("%s flag: %t", f.name, v)
		*f.dst = v
	}

	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"sendgrid_from_email", &cfg.LDFlag_SendgridFromEmail},
		{"twilio_from_phone", &cfg.LDFlag_TwilioFromPhone},
		{"organization_name", &cfg.LDFlag_OrganizationName},
	}
	for _, f := range stringFlags {
		v, err := ldClient.StringVariation(f.name, ctx, *f.dst)
		if err != nil {
			return fmt.Errorf("retrieving %s flag: %w", f.name, err)
		}
		if v == "" {
			utils.Logger.Warnf("%s flag is empty, keeping %s", f.name, *f.dst)
			continue
		}
		utils.Logger.Debugf("%s flag: %s", f.name, v)
		*f.dst = v
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
