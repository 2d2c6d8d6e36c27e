// Package config loads the declarative configuration surface for all
// three daemons (Shield, Hive, Agent) from environment variables, via
// getEnv/getEnvInt/getEnvDuration/getEnvBool helpers. Zone and ACL records
// too large for flat env vars load separately from YAML (see yaml.go).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the root configuration object; cmd/shieldd, cmd/hive, and
// cmd/agent each read the one sub-struct relevant to their role plus the
// shared Telemetry surface.
type Config struct {
	Env       string
	Shield    ShieldConfig
	Hive      HiveConfig
	Agent     AgentConfig
	Telemetry TelemetryConfig
}

// ShieldConfig configures the cmd/shieldd gateway process.
type ShieldConfig struct {
	Hostname    string
	HTTPPort    int
	Guards      GuardsConfig
	RateLimit   RateLimitConfig
	HA          HAConfig
	SIEM        SIEMConfig
	Quarantine  QuarantineConfig
	ZonesPath   string // optional YAML file of zone/ACL records
	DatabaseURL string // optional; enables operator API-key persistence and auth enforcement
	ReadTimeout time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// GuardsConfig carries the per-zone-type enabled/policy/threshold triple
// for each of the six zone guards.
type GuardsConfig struct {
	LLM   GuardPolicy
	RAG   GuardPolicy
	Agent GuardPolicy
	Tool  GuardPolicy
	MCP   GuardPolicy
	API   GuardPolicy
}

// GuardPolicyAction is the declarative action a guard takes once its
// threshold is crossed.
type GuardPolicyAction string

const (
	GuardPolicyBlock GuardPolicyAction = "block"
	GuardPolicyLog   GuardPolicyAction = "log"
	GuardPolicyAlert GuardPolicyAction = "alert"
)

// GuardPolicy is one zone-type guard's declarative configuration.
type GuardPolicy struct {
	Enabled   bool
	Policy    GuardPolicyAction
	Threshold float64
}

// RateLimitConfig configures the token-bucket limiter.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// HAMode selects standalone vs. active/standby operation.
type HAMode string

const (
	HAModeStandalone    HAMode = "standalone"
	HAModeActiveStandby HAMode = "active_standby"
)

// HAConfig configures active/standby leader election.
type HAConfig struct {
	Enabled  bool
	Mode     HAMode
	VirtualIP string
	Priority int
	Preempt  bool
}

// SIEMConfig configures internal/siem's export connection.
type SIEMConfig struct {
	Enabled bool
	Host    string
	Port    int
	Format  string // "cef", "json", or "syslog"
}

// QuarantineConfig configures internal/quarantine's storage root.
type QuarantineConfig struct {
	Root string
}

// HiveConfig configures the cmd/hive aggregator process.
type HiveConfig struct {
	HTTPPort       int
	WirePort       int // Agent<->Hive binary-protocol listener
	DatabaseURL    string
	SignatureStore string // filesystem path or DB table backing the signature Source
	TemporalHost   string
	TemporalPort   int
	Namespace      string
	TaskQueue      string
	Webhooks       WebhookConfig
}

// WebhookConfig configures the outbound notification targets Temporal
// activities POST to for on-call paging and analyst review alerts. Either
// URL may be left empty, in which case that notification falls back to a
// log line instead of a delivery attempt.
type WebhookConfig struct {
	OnCallURL  string
	AnalystURL string
}

// AgentConfig configures the cmd/agent endpoint process.
type AgentConfig struct {
	HiveHost          string
	HiveWirePort      int
	HeartbeatInterval time.Duration
	SignatureSyncPath string // where the agent persists its pulled pattern set
}

// TelemetryConfig configures observability shared by all three daemons.
type TelemetryConfig struct {
	PrometheusPort int
	ServiceName    string
}

// Load reads configuration from environment variables, applying
// defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("SHIELD_ENV", "development"),
		Shield: ShieldConfig{
			Hostname: getEnv("SHIELD_HOSTNAME", "shield-01"),
			HTTPPort: getEnvInt("SHIELD_HTTP_PORT", 8443),
			Guards: GuardsConfig{
				LLM:   defaultGuardPolicy("SHIELD_GUARD_LLM", 0.75),
				RAG:   defaultGuardPolicy("SHIELD_GUARD_RAG", 0.5),
				Agent: defaultGuardPolicy("SHIELD_GUARD_AGENT", 0.5),
				Tool:  defaultGuardPolicy("SHIELD_GUARD_TOOL", 0.5),
				MCP:   defaultGuardPolicy("SHIELD_GUARD_MCP", 0.5),
				API:   defaultGuardPolicy("SHIELD_GUARD_API", 0.5),
			},
			RateLimit: RateLimitConfig{
				Enabled: getEnvBool("SHIELD_RATE_LIMIT_ENABLED", true),
				RPS:     float64(getEnvInt("SHIELD_RATE_LIMIT_RPS", 100)),
				Burst:   getEnvInt("SHIELD_RATE_LIMIT_BURST", 200),
			},
			HA: HAConfig{
				Enabled:   getEnvBool("SHIELD_HA_ENABLED", false),
				Mode:      HAMode(getEnv("SHIELD_HA_MODE", string(HAModeStandalone))),
				VirtualIP: getEnv("SHIELD_HA_VIRTUAL_IP", ""),
				Priority:  getEnvInt("SHIELD_HA_PRIORITY", 100),
				Preempt:   getEnvBool("SHIELD_HA_PREEMPT", true),
			},
			SIEM: SIEMConfig{
				Enabled: getEnvBool("SHIELD_SIEM_ENABLED", false),
				Host:    getEnv("SHIELD_SIEM_HOST", "localhost"),
				Port:    getEnvInt("SHIELD_SIEM_PORT", 514),
				Format:  getEnv("SHIELD_SIEM_FORMAT", "json"),
			},
			Quarantine: QuarantineConfig{
				Root: getEnv("SHIELD_QUARANTINE_ROOT", "/var/lib/shield/quarantine"),
			},
			ZonesPath:    getEnv("SHIELD_ZONES_PATH", ""),
			DatabaseURL:  getEnv("SHIELD_DATABASE_URL", ""),
			ReadTimeout:  getEnvDuration("SHIELD_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SHIELD_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SHIELD_IDLE_TIMEOUT", 120*time.Second),
		},
		Hive: HiveConfig{
			HTTPPort:       getEnvInt("HIVE_HTTP_PORT", 8444),
			WirePort:       getEnvInt("HIVE_WIRE_PORT", 9443),
			DatabaseURL:    getEnv("HIVE_DATABASE_URL", ""),
			SignatureStore: getEnv("HIVE_SIGNATURE_STORE", "/var/lib/hive/signatures"),
			TemporalHost:   getEnv("TEMPORAL_HOST", "localhost"),
			TemporalPort:   getEnvInt("TEMPORAL_PORT", 7233),
			Namespace:      getEnv("TEMPORAL_NAMESPACE", "shield"),
			TaskQueue:      getEnv("TEMPORAL_TASK_QUEUE", "shield-tasks"),
			Webhooks: WebhookConfig{
				OnCallURL:  getEnv("HIVE_ONCALL_WEBHOOK_URL", ""),
				AnalystURL: getEnv("HIVE_ANALYST_WEBHOOK_URL", ""),
			},
		},
		Agent: AgentConfig{
			HiveHost:          getEnv("AGENT_HIVE_HOST", "localhost"),
			HiveWirePort:      getEnvInt("AGENT_HIVE_WIRE_PORT", 9443),
			HeartbeatInterval: getEnvDuration("AGENT_HEARTBEAT_INTERVAL", 60*time.Second),
			SignatureSyncPath: getEnv("AGENT_SIGNATURE_SYNC_PATH", "/var/lib/agent/signatures"),
		},
		Telemetry: TelemetryConfig{
			PrometheusPort: getEnvInt("SHIELD_PROMETHEUS_PORT", 9090),
			ServiceName:    getEnv("SHIELD_SERVICE_NAME", "shield"),
		},
	}

	return cfg, nil
}

func defaultGuardPolicy(prefix string, threshold float64) GuardPolicy {
	return GuardPolicy{
		Enabled:   getEnvBool(prefix+"_ENABLED", true),
		Policy:    GuardPolicyAction(getEnv(prefix+"_POLICY", string(GuardPolicyBlock))),
		Threshold: getEnvFloat(prefix+"_THRESHOLD", threshold),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
