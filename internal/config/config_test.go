package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Upload.MaxConcurrent != 5 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 5)
	}
	if cfg.Upload.MaxFileSize != 104857600 {
		t.Errorf("Upload.MaxFileSize = %d, want %d", cfg.Upload.MaxFileSize, 104857600)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, time.Hour)
	}
	if cfg.Chart.Width != 1024 || cfg.Chart.Height != 512 {
		t.Errorf("Chart = %dx%d, want 1024x512", cfg.Chart.Width, cfg.Chart.Height)
	}
	if cfg.Rate.RequestsPerMinute != 100 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 100)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UPLOAD_MAX_CONCURRENT", "10")
	t.Setenv("SESSION_MAX", "25")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Upload.MaxConcurrent != 10 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 10)
	}
	if cfg.Session.MaxSessions != 25 {
		t.Errorf("Session.MaxSessions = %d, want %d", cfg.Session.MaxSessions, 25)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_Duration(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("SESSION_TTL", "1m30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Session.TTL != 90*time.Second {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, 90*time.Second)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid SERVER_PORT")
	}
}

// validConfig returns a config that passes validation, for mutation in tests.
func validConfig() *Config {
	cfg := &Config{}
	cfg.Server = ServerConfig{Host: "0.0.0.0", Port: 8080, ReadTimeout: time.Second,
		WriteTimeout: time.Second, IdleTimeout: time.Second, ShutdownTimeout: time.Second,
		RequestTimeout: time.Second}
	cfg.Upload = UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second}
	cfg.Session = SessionConfig{TTL: time.Hour, CleanupInterval: time.Minute, MaxSessions: 10}
	cfg.Chart = ChartConfig{Width: 800, Height: 400}
	cfg.Report = ReportConfig{TopCategories: 5, MaxCorrelationColumns: 12}
	cfg.Assets = AssetsConfig{StylesheetPath: "web/assets/style.css"}
	cfg.Rate = RateLimitConfig{Enabled: true, RequestsPerMinute: 100}
	cfg.Logging = LoggingConfig{Level: "info", Format: "text"}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantMiss string // substring the error must mention; empty means valid
	}{
		{
			name:   "valid config passes",
			mutate: func(c *Config) {},
		},
		{
			name:     "port out of range",
			mutate:   func(c *Config) { c.Server.Port = 99999 },
			wantMiss: "SERVER_PORT",
		},
		{
			name:     "zero max file size",
			mutate:   func(c *Config) { c.Upload.MaxFileSize = 0 },
			wantMiss: "UPLOAD_MAX_FILE_SIZE",
		},
		{
			name:     "zero session ttl",
			mutate:   func(c *Config) { c.Session.TTL = 0 },
			wantMiss: "SESSION_TTL",
		},
		{
			name:     "tiny chart",
			mutate:   func(c *Config) { c.Chart.Width = 10 },
			wantMiss: "CHART_WIDTH",
		},
		{
			name:     "missing stylesheet path",
			mutate:   func(c *Config) { c.Assets.StylesheetPath = "" },
			wantMiss: "ASSETS_STYLESHEET",
		},
		{
			name:     "invalid log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			wantMiss: "LOG_LEVEL",
		},
		{
			name:     "rate limiting enabled with zero budget",
			mutate:   func(c *Config) { c.Rate.RequestsPerMinute = 0 },
			wantMiss: "RATE_LIMIT_REQUESTS_PER_MINUTE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantMiss == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMiss) {
				t.Errorf("error %q should mention %s", err, tt.wantMiss)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		got := cfg.Addr()
		if got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestTrustedProxyList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "empty", value: "", want: nil},
		{name: "single", value: "10.0.0.0/8", want: []string{"10.0.0.0/8"}},
		{
			name:  "multiple entries with spaces",
			value: "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16",
			want:  []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ServerConfig{TrustedProxies: tt.value}
			got := cfg.TrustedProxyList()
			if len(got) != len(tt.want) {
				t.Fatalf("TrustedProxyList() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("TrustedProxyList()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
