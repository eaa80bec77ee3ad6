package config

import (
	"encoding/base64"
	"net/netip"
	"os"
	"strings"
	"time"

	pstrings "werkstattguard/pkg/platform/strings"
)

// Server captures process level configuration for the security core.
type Server struct {
	Addr string

	// MasterKey is the 256-bit key protecting workshop data at rest.
	// Supplied base64-encoded via WG_MASTER_KEY; never logged.
	MasterKey []byte

	// AuditSalt keys the tamper-evidence checksum over audit events.
	// Supplied via WG_AUDIT_SALT; never logged.
	AuditSalt []byte

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// ReceiptKey signs portability export receipts. Optional; without it
	// exports carry no receipt. Supplied via WG_RECEIPT_KEY; never logged.
	ReceiptKey []byte

	// AdminToken protects the audit query endpoints. Without it the audit
	// surface is not exposed over HTTP at all.
	AdminToken string

	Environment    string
	TracingEnabled bool

	// TrustedProxies lists the CIDR prefixes allowed to set X-Forwarded-For.
	// Empty means forwarding headers are never trusted.
	TrustedProxies []netip.Prefix

	// FailClosedActions lists rate limit actions that deny on store errors
	// instead of the default fail-open policy.
	FailClosedActions []string
}

// RedisConfig holds connection settings for the shared rate limit state store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

// KafkaConfig holds settings for the security alert topic.
type KafkaConfig struct {
	Brokers    string
	AlertTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("WG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	alertTopic := os.Getenv("WG_KAFKA_ALERT_TOPIC")
	if alertTopic == "" {
		alertTopic = "security.alerts"
	}

	var failClosed []string
	if raw := os.Getenv("WG_FAIL_CLOSED_ACTIONS"); raw != "" {
		failClosed = pstrings.DedupeAndTrimLower(strings.Split(raw, ","))
	}

	trustedProxies := parsePrefixes(os.Getenv("WG_TRUSTED_PROXIES"))

	environment := os.Getenv("WG_ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	return Server{
		Addr:           addr,
		MasterKey:      decodeSecret(os.Getenv("WG_MASTER_KEY")),
		AuditSalt:      decodeSecret(os.Getenv("WG_AUDIT_SALT")),
		ReceiptKey:     decodeSecret(os.Getenv("WG_RECEIPT_KEY")),
		AdminToken:     os.Getenv("WG_ADMIN_TOKEN"),
		Environment:    environment,
		TracingEnabled: os.Getenv("WG_TRACING_ENABLED") == "true",
		DatabaseURL:    os.Getenv("WG_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("WG_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    os.Getenv("WG_KAFKA_BROKERS"),
			AlertTopic: alertTopic,
		},
		TrustedProxies:    trustedProxies,
		FailClosedActions: failClosed,
	}
}

// parsePrefixes reads a comma-separated CIDR list; bare addresses become
// single-host prefixes. Entries that do not parse are dropped.
func parsePrefixes(raw string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range pstrings.DedupeAndTrimLower(strings.Split(raw, ",")) {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, prefix)
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return out
}

// decodeSecret accepts base64 (standard or raw) and falls back to the raw
// bytes so operators can supply either encoding.
func decodeSecret(v string) []byte {
	if v == "" {
		return nil
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b
	}
	if b, err := base64.RawStdEncoding.DecodeString(v); err == nil {
		return b
	}
	return []byte(v)
}
