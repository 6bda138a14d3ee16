// Package config loads the insurai configuration from a YAML file and
// INSURAI_* environment variables, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the whole application configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
	Engine   Engine   `yaml:"engine"`
	Sessions Sessions `yaml:"sessions"`
	Redis    Redis    `yaml:"redis"`
	Database Database `yaml:"database"`
	LLM      LLM      `yaml:"llm"`
	SMS      SMS      `yaml:"sms"`
	Mail     Mail     `yaml:"mail"`
	OTP      OTP      `yaml:"otp"`
	Flows    Flows    `yaml:"flows"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Engine struct {
	MaxSelfLoops      int           `yaml:"max_self_loops"`
	MaxSteps          int           `yaml:"max_steps"`
	CapabilityTimeout time.Duration `yaml:"capability_timeout"`
}

type Sessions struct {
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
	Prefix  string        `yaml:"prefix"`
	// EncryptionKey enables AES-GCM encryption at rest (32 bytes, hex or base64).
	EncryptionKey string `yaml:"encryption_key"`
	// MaskFields lists regular expressions of field names masked before saving.
	MaskFields []string `yaml:"mask_fields"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Database struct {
	// Path of the SQLite database. Empty uses the in-memory demo data.
	Path string `yaml:"path"`
}

type LLM struct {
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Path       string        `yaml:"path"`
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SMS struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

type Mail struct {
	APIKey string `yaml:"api_key"`
	Sender string `yaml:"sender"`
}

type OTP struct {
	TTL time.Duration `yaml:"ttl"`
}

type Flows struct {
	Onboarding struct {
		MaxNegotiationTurns int `yaml:"max_negotiation_turns"`
	} `yaml:"onboarding"`
	Support struct {
		MaxFollowups int `yaml:"max_followups"`
	} `yaml:"support"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var c Config
	c.Server.Addr = ":8080"
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Engine.MaxSelfLoops = 5
	c.Engine.MaxSteps = 1000
	c.Engine.CapabilityTimeout = 20 * time.Second
	c.Sessions.Backend = BackendMemory
	c.Sessions.Dir = ".insurai/sessions"
	c.Sessions.TTL = 24 * time.Hour
	c.Sessions.Prefix = "insurai:session:"
	c.Redis.Addr = "localhost:6379"
	c.LLM.Provider = "openai"
	c.LLM.Model = "gpt-4o-mini"
	c.Mail.Sender = "InsurAI <policies@insurai.example>"
	c.OTP.TTL = 5 * time.Minute
	c.Flows.Onboarding.MaxNegotiationTurns = 8
	c.Flows.Support.MaxFollowups = 20
	return c
}

// Load reads path (optional) over the defaults, then applies the environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Sessions.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("sessions.backend must be memory, file or redis (got %q)", c.Sessions.Backend))
	}
	if c.Sessions.Backend == BackendFile && c.Sessions.Dir == "" {
		errs = append(errs, errors.New("sessions.dir is required for the file backend"))
	}
	if c.Sessions.Backend == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis backend"))
	}
	if c.Engine.CapabilityTimeout <= 0 {
		errs = append(errs, errors.New("engine.capability_timeout must be positive"))
	}
	if c.Engine.MaxSelfLoops < 0 || c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine bounds cannot be negative"))
	}
	if c.Flows.Onboarding.MaxNegotiationTurns < 0 || c.Flows.Support.MaxFollowups < 0 {
		errs = append(errs, errors.New("flow bounds cannot be negative"))
	}
	return errors.Join(errs...)
}

type envVar struct {
	name string
	set  func(string) error
}

func str(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func num(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func dur(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func (c *Config) env() []envVar {
	return []envVar{
		{"INSURAI_ADDR", str(&c.Server.Addr)},
		{"INSURAI_LOG_LEVEL", str(&c.Log.Level)},
		{"INSURAI_LOG_FORMAT", str(&c.Log.Format)},
		{"INSURAI_MAX_SELF_LOOPS", num(&c.Engine.MaxSelfLoops)},
		{"INSURAI_MAX_STEPS", num(&c.Engine.MaxSteps)},
		{"INSURAI_CAPABILITY_TIMEOUT", dur(&c.Engine.CapabilityTimeout)},
		{"INSURAI_SESSIONS_BACKEND", str(&c.Sessions.Backend)},
		{"INSURAI_SESSIONS_DIR", str(&c.Sessions.Dir)},
		{"INSURAI_SESSION_TTL", dur(&c.Sessions.TTL)},
		{"INSURAI_ENCRYPTION_KEY", str(&c.Sessions.EncryptionKey)},
		{"INSURAI_REDIS_ADDR", str(&c.Redis.Addr)},
		{"INSURAI_REDIS_PASSWORD", str(&c.Redis.Password)},
		{"INSURAI_REDIS_DB", num(&c.Redis.DB)},
		{"INSURAI_DB_PATH", str(&c.Database.Path)},
		{"INSURAI_LLM_PROVIDER", str(&c.LLM.Provider)},
		{"INSURAI_LLM_BASE_URL", str(&c.LLM.BaseURL)},
		{"INSURAI_LLM_API_KEY", str(&c.LLM.APIKey)},
		{"INSURAI_LLM_MODEL", str(&c.LLM.Model)},
		{"INSURAI_TWILIO_ACCOUNT_SID", str(&c.SMS.AccountSID)},
		{"INSURAI_TWILIO_AUTH_TOKEN", str(&c.SMS.AuthToken)},
		{"INSURAI_TWILIO_FROM", str(&c.SMS.From)},
		{"INSURAI_RESEND_API_KEY", str(&c.Mail.APIKey)},
		{"INSURAI_MAIL_SENDER", str(&c.Mail.Sender)},
		{"INSURAI_OTP_TTL", dur(&c.OTP.TTL)},
		{"INSURAI_MAX_NEGOTIATION_TURNS", num(&c.Flows.Onboarding.MaxNegotiationTurns)},
		{"INSURAI_MAX_FOLLOWUPS", num(&c.Flows.Support.MaxFollowups)},
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for _, v := range c.env() {
		val, ok := lookup(v.name)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		if err := v.set(strings.TrimSpace(val)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.name, err))
		}
	}
	return errors.Join(errs...)
}
