package main

import (
	"log/slog"
	"net/netip"
	"time"

	"braces.dev/errtrace"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/phax/ph-web-sub004/forwarded"
	"github.com/phax/ph-web-sub004/httpfwd"
)

const envPrefix = "FWDECHO_"

type config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	MetricsPath     string        `env:"METRICS_PATH" envDefault:"/metrics"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ProxyBy         string        `env:"PROXY_BY"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	MaxUploadSize   int64         `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	level   slog.Level
	trusted []netip.Prefix
	by      forwarded.Node
}

// loadConfig reads .env files, then the environment, then the flags in args.
// Later sources override earlier ones.
func loadConfig(args []string, dotenv ...string) (*config, error) {
	// a missing .env file is fine
	_ = godotenv.Load(dotenv...)

	cfg := &config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, errtrace.Wrap(err)
	}

	fs := pflag.NewFlagSet("fwdecho", pflag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.MetricsPath, "metrics-path", cfg.MetricsPath, "path of the Prometheus endpoint")
	fs.StringSliceVar(&cfg.TrustedProxies, "trusted-proxy", cfg.TrustedProxies, "CIDR or address of a trusted proxy (repeatable)")
	fs.StringVar(&cfg.ProxyBy, "proxy-by", cfg.ProxyBy, "node identifier of this service in outbound Forwarded values")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console, dev or json")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.Int64Var(&cfg.MaxUploadSize, "max-upload-size", cfg.MaxUploadSize, "maximum multipart request body size in bytes")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	if err := fs.Parse(args); err != nil {
		return nil, errtrace.Wrap(err)
	}

	if err := cfg.level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, errtrace.Wrap(err)
	}
	trusted, err := httpfwd.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	cfg.trusted = trusted
	if cfg.ProxyBy != "" {
		if cfg.by, err = forwarded.ParseNode(cfg.ProxyBy); err != nil {
			return nil, errtrace.Wrap(err)
		}
	}
	return cfg, nil
}
