// Package config loads and validates gateway configuration from the
// environment. All validation happens once at startup; a Config that loads
// without error is safe to run with.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clawr-ai/gate/core"
)

const (
	// TestFacilitatorURL is the public x402 test facilitator. It only
	// verifies against test networks and is rejected in prod.
	TestFacilitatorURL = "https://x402.org/facilitator"

	// CDPFacilitatorURL is Coinbase's production facilitator. It requires a
	// Bearer API key.
	CDPFacilitatorURL = "https://api.cdp.coinbase.com/platform/v2/x402"

	defaultPayTo      = "0x5C78C7E37f3cCB01059167BaE3b4622b44f97D0F"
	defaultListenAddr = ":4021"
)

// RuntimeEnv is the normalized deployment environment.
type RuntimeEnv string

const (
	EnvTest RuntimeEnv = "test"
	EnvProd RuntimeEnv = "prod"
)

// Config is the gateway's startup configuration.
type Config struct {
	RuntimeEnv RuntimeEnv

	Network           string
	PayTo             string
	FacilitatorURLs   []string
	FacilitatorAPIKey string

	SessionSecret []byte
	// SessionSecretGenerated is set when no SESSION_SECRET was provided and
	// a random one was generated. Sessions then die with the process.
	SessionSecretGenerated bool
	SessionCookieName      string

	AuthOrigin string

	RedisURL           string
	ListenAddr         string
	TelemetryMaxEvents int
}

// Getenv is the environment lookup used by Load. Tests substitute a map.
type Getenv func(key string) string

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv reads configuration through the given lookup and validates it.
func FromEnv(getenv Getenv) (*Config, error) {
	env, err := ResolveRuntimeEnv(getenv("X402_ENV"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RuntimeEnv:        env,
		Network:           resolveNetwork(env, getenv("NETWORK")),
		FacilitatorAPIKey: strings.TrimSpace(getenv("FACILITATOR_API_KEY")),
		SessionCookieName: firstNonEmpty(getenv("SESSION_COOKIE_NAME"), core.DefaultSessionCookieName),
		AuthOrigin:        firstNonEmpty(getenv("AUTH_ORIGIN"), "https://clawr.ai"),
		RedisURL:          getenv("REDIS_URL"),
		ListenAddr:        resolveListenAddr(getenv("PORT"), getenv("LISTEN_ADDR")),
	}

	cfg.FacilitatorURLs = resolveFacilitatorURLs(env, getenv("FACILITATOR_URLS"), getenv("FACILITATOR_URL"))
	for _, url := range cfg.FacilitatorURLs {
		if err := assertFacilitatorPolicy(env, url); err != nil {
			return nil, err
		}
		if err := assertFacilitatorAuthPolicy(env, url, cfg.FacilitatorAPIKey); err != nil {
			return nil, err
		}
	}

	cfg.PayTo, err = resolvePayTo(env, getenv("PAY_TO"))
	if err != nil {
		return nil, err
	}

	cfg.SessionSecret, cfg.SessionSecretGenerated, err = resolveSessionSecret(env, getenv("SESSION_SECRET"))
	if err != nil {
		return nil, err
	}

	cfg.TelemetryMaxEvents, err = resolveTelemetryMax(getenv("TELEMETRY_MAX_EVENTS"))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolveRuntimeEnv normalizes an environment name. "", "test", "dev" and
// "development" mean test; "prod" and "production" mean prod.
func ResolveRuntimeEnv(raw string) (RuntimeEnv, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "test", "dev", "development":
		return EnvTest, nil
	case "prod", "production":
		return EnvProd, nil
	default:
		return "", fmt.Errorf("invalid X402_ENV value: %q", raw)
	}
}

func resolveNetwork(env RuntimeEnv, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if env == EnvProd {
		return core.NetworkBaseMainnet
	}
	return core.NetworkBaseSepolia
}

func resolveFacilitatorURLs(env RuntimeEnv, listRaw, single string) []string {
	var urls []string
	for _, url := range strings.Split(listRaw, ",") {
		if url = strings.TrimSpace(url); url != "" {
			urls = append(urls, url)
		}
	}
	if len(urls) > 0 {
		return urls
	}
	if single = strings.TrimSpace(single); single != "" {
		return []string{single}
	}
	if env == EnvProd {
		return []string{CDPFacilitatorURL}
	}
	return []string{TestFacilitatorURL}
}

func assertFacilitatorPolicy(env RuntimeEnv, url string) error {
	if env == EnvProd && strings.Contains(strings.ToLower(url), "x402.org/facilitator") {
		return fmt.Errorf("prod cannot use the x402.org test facilitator: %s", url)
	}
	return nil
}

func assertFacilitatorAuthPolicy(env RuntimeEnv, url, apiKey string) error {
	if env == EnvProd && strings.Contains(url, "api.cdp.coinbase.com") && apiKey == "" {
		return fmt.Errorf("prod with the CDP facilitator requires FACILITATOR_API_KEY")
	}
	return nil
}

func resolvePayTo(env RuntimeEnv, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if env == EnvProd {
			return "", fmt.Errorf("PAY_TO is required in prod")
		}
		raw = defaultPayTo
	}
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("PAY_TO is not a valid address: %q", raw)
	}
	return common.HexToAddress(raw).Hex(), nil
}

func resolveSessionSecret(env RuntimeEnv, raw string) (secret []byte, generated bool, err error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		return []byte(raw), false, nil
	}
	if env == EnvProd {
		return nil, false, fmt.Errorf("SESSION_SECRET is required in prod")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), true, nil
}

func resolveTelemetryMax(raw string) (int, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return 0, nil // sink applies its default
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("TELEMETRY_MAX_EVENTS is not a number: %q", raw)
	}
	return n, nil
}

func resolveListenAddr(port, addr string) string {
	if addr = strings.TrimSpace(addr); addr != "" {
		return addr
	}
	if port = strings.TrimSpace(port); port != "" {
		return ":" + port
	}
	return defaultListenAddr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
