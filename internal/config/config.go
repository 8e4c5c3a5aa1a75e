// Package config defines Scotty's server configuration: the types every
// other package is wired against, and the flag + environment-variable
// layering that produces a Config at startup. On-disk YAML config-file
// loading and CLI argument parsing for the scotty client are explicitly
// out of scope (spec.md §1 Non-goals); this package only owns the
// server-side Config type and the merge logic, grounded on the teacher's
// internal/config/config.go Parse() pattern (flag first, then
// environment variables win).
package config

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scottyhq/scotty/internal/loadbalancer"
	"github.com/scottyhq/scotty/internal/task"
)

// Config is the full set of server-wide settings every component is
// constructed from.
type Config struct {
	BindAddress string

	AppsRootFolder string
	AppsMaxDepth   int

	DiscoveryInterval time.Duration
	TTLInterval       time.Duration

	TaskOutput        task.OutputSettings
	TaskRetention     time.Duration
	TaskPruneInterval time.Duration

	LoadBalancer loadbalancer.GlobalSettings

	BlueprintDBPath string

	// CreateAppMaxSizeBytes bounds the request body size POST
	// /apps/create will accept before the HTTP surface responds 413
	// (spec §6 "413 for bodies beyond create_app_max_size").
	CreateAppMaxSizeBytes int64

	LogLevel slog.Level
}

// Defaults returns the configuration a bare `scottyd` would run with if
// no flags or environment variables were supplied.
func Defaults() *Config {
	return &Config{
		BindAddress:       ":8080",
		AppsRootFolder:    "/opt/scotty/apps",
		AppsMaxDepth:      2,
		DiscoveryInterval: 30 * time.Second,
		TTLInterval:       60 * time.Second,
		TaskOutput:        task.DefaultOutputSettings,
		TaskRetention:     24 * time.Hour,
		TaskPruneInterval: 5 * time.Minute,
		LoadBalancer: loadbalancer.GlobalSettings{
			Variant:      loadbalancer.VariantReverseProxyLabels,
			DomainSuffix: "apps.localhost",
		},
		BlueprintDBPath:       "/opt/scotty/scotty.db",
		CreateAppMaxSizeBytes: 10 * 1 << 20, // 10M
		LogLevel:              slog.LevelInfo,
	}
}

// ParseSize parses a suffix-annotated size string (bare bytes, or an
// integer followed by K, M, or G, case-insensitive) per spec §6's
// `create_app_max_size` format.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return n * multiplier, nil
}

// Parse builds a Config from flag.CommandLine plus SCOTTY_* environment
// variables, the latter taking precedence when set (matching the
// teacher's config.Parse DOCKGE_* override order).
func Parse() *Config {
	cfg := Defaults()

	var logLevel, variant, allowlist string
	var enableTLS bool

	flag.StringVar(&cfg.BindAddress, "bind", cfg.BindAddress, "HTTP/WebSocket bind address")
	flag.StringVar(&cfg.AppsRootFolder, "apps-root", cfg.AppsRootFolder, "Root folder scanned for compose apps")
	flag.IntVar(&cfg.AppsMaxDepth, "apps-max-depth", cfg.AppsMaxDepth, "Max directory depth scanned under apps-root")
	flag.DurationVar(&cfg.DiscoveryInterval, "discovery-interval", cfg.DiscoveryInterval, "Interval between discovery scans")
	flag.DurationVar(&cfg.TTLInterval, "ttl-interval", cfg.TTLInterval, "Interval between TTL sweeps")
	flag.IntVar(&cfg.TaskOutput.MaxLines, "task-max-lines", cfg.TaskOutput.MaxLines, "Max captured output lines per task")
	flag.IntVar(&cfg.TaskOutput.MaxLineLength, "task-max-line-length", cfg.TaskOutput.MaxLineLength, "Max bytes captured per output line")
	flag.DurationVar(&cfg.TaskRetention, "task-retention", cfg.TaskRetention, "How long finished tasks are kept before pruning")
	flag.DurationVar(&cfg.TaskPruneInterval, "task-prune-interval", cfg.TaskPruneInterval, "How often the task retention sweep runs")
	flag.StringVar(&variant, "lb-variant", string(cfg.LoadBalancer.Variant), "Load-balancer variant (ReverseProxyLabels|GeneratedStaticConfig)")
	flag.StringVar(&cfg.LoadBalancer.DomainSuffix, "lb-domain-suffix", cfg.LoadBalancer.DomainSuffix, "Domain suffix apps are published under")
	flag.StringVar(&cfg.LoadBalancer.CertResolver, "lb-cert-resolver", cfg.LoadBalancer.CertResolver, "TLS cert resolver name")
	flag.BoolVar(&enableTLS, "lb-enable-tls", cfg.LoadBalancer.EnableTLS, "Enable TLS on generated routes")
	flag.StringVar(&allowlist, "lb-middleware-allowlist", strings.Join(cfg.LoadBalancer.MiddlewareAllowlist, ","), "Comma-separated allowed middleware names")
	flag.StringVar(&cfg.BlueprintDBPath, "blueprint-db", cfg.BlueprintDBPath, "Path to the blueprint/image-update bbolt database")
	createAppMaxSize := flag.String("create-app-max-size", "10M", "Max request body size for apps/create (suffix K|M|G)")
	flag.StringVar(&logLevel, "log-level", levelString(cfg.LogLevel), "Log level (debug, info, warn, error)")
	flag.Parse()

	if n, err := ParseSize(*createAppMaxSize); err == nil && n > 0 {
		cfg.CreateAppMaxSizeBytes = n
	}

	cfg.LoadBalancer.Variant = loadbalancer.Variant(variant)
	cfg.LoadBalancer.EnableTLS = enableTLS
	cfg.LoadBalancer.MiddlewareAllowlist = splitCSV(allowlist)

	applyEnvOverrides(cfg, &logLevel)
	cfg.LogLevel = parseLogLevel(logLevel)

	return cfg
}

func applyEnvOverrides(cfg *Config, logLevel *string) {
	if v := os.Getenv("SCOTTY_BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("SCOTTY_APPS_ROOT_FOLDER"); v != "" {
		cfg.AppsRootFolder = v
	}
	if v := os.Getenv("SCOTTY_APPS_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AppsMaxDepth = n
		}
	}
	if v := os.Getenv("SCOTTY_DISCOVERY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DiscoveryInterval = d
		}
	}
	if v := os.Getenv("SCOTTY_TTL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TTLInterval = d
		}
	}
	if v := os.Getenv("SCOTTY_TASK_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TaskRetention = d
		}
	}
	if v := os.Getenv("SCOTTY_TASK_PRUNE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TaskPruneInterval = d
		}
	}
	if v := os.Getenv("SCOTTY_LB_VARIANT"); v != "" {
		cfg.LoadBalancer.Variant = loadbalancer.Variant(v)
	}
	if v := os.Getenv("SCOTTY_LB_DOMAIN_SUFFIX"); v != "" {
		cfg.LoadBalancer.DomainSuffix = v
	}
	if v := os.Getenv("SCOTTY_LB_MIDDLEWARE_ALLOWLIST"); v != "" {
		cfg.LoadBalancer.MiddlewareAllowlist = splitCSV(v)
	}
	if v := os.Getenv("SCOTTY_BLUEPRINT_DB"); v != "" {
		cfg.BlueprintDBPath = v
	}
	if v := os.Getenv("SCOTTY_CREATE_APP_MAX_SIZE"); v != "" {
		if n, err := ParseSize(v); err == nil && n > 0 {
			cfg.CreateAppMaxSizeBytes = n
		}
	}
	if v := os.Getenv("SCOTTY_LOG_LEVEL"); v != "" {
		*logLevel = v
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelString(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}
