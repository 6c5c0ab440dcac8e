package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	// SettingsFileEnv names the variable that overrides DefaultSettingsFile.
	SettingsFileEnv     = "JSON_SETTINGS_FILENAME"
	DefaultSettingsFile = ".secret.json"

	// PollIntervalEnv holds the poll interval in (possibly fractional) seconds.
	PollIntervalEnv     = "REPEAT_TIMEOUT"
	DefaultPollInterval = 15 * time.Second

	DefaultTimeout = 30 * time.Second

	envPrefix = "MAILRELAY"
)

// ErrInvalidConfig marks every configuration problem that prevents startup.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Mail           MailConfig    `mapstructure:"mail" yaml:"mail"`
	Bot            BotConfig     `mapstructure:"bot" yaml:"bot"`
	KeyringBackend string        `mapstructure:"keyring_backend" yaml:"keyring_backend,omitempty"`
	PollInterval   time.Duration `mapstructure:"-" yaml:"poll_interval"`
	Timeout        time.Duration `mapstructure:"-" yaml:"timeout"`
}

type MailConfig struct {
	Host               string   `mapstructure:"host" yaml:"host"`
	Port               int      `mapstructure:"port" yaml:"port"`
	TLS                bool     `mapstructure:"tls" yaml:"tls"`
	StartTLS           bool     `mapstructure:"starttls" yaml:"starttls"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Mailbox            string   `mapstructure:"mailbox" yaml:"mailbox"`
	Username           string   `mapstructure:"username" yaml:"username"`
	Password           string   `mapstructure:"password" yaml:"password"`
	SpecialSenders     []string `mapstructure:"special_senders" yaml:"special_senders"`
	PasswordSource     string   `mapstructure:"-" yaml:"password_source,omitempty"`
}

type BotConfig struct {
	Token       string `mapstructure:"token" yaml:"token"`
	ChatID      string `mapstructure:"chat_id" yaml:"chat_id"`
	TokenSource string `mapstructure:"-" yaml:"token_source,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Mail: MailConfig{
			Port:    993,
			TLS:     true,
			Mailbox: "INBOX",
		},
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

// SettingsPath returns the settings file location from the environment,
// falling back to DefaultSettingsFile in the working directory.
func SettingsPath() string {
	if path := strings.TrimSpace(os.Getenv(SettingsFileEnv)); path != "" {
		return path
	}
	return DefaultSettingsFile
}

// Load reads the settings file at path and applies environment overrides:
// MAILRELAY_<SECTION>_<KEY> for file keys, REPEAT_TIMEOUT for the poll
// interval and MAILRELAY_TIMEOUT for the per-call timeout (both seconds).
// The file must exist and contain both the mail and bot sections.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		v.SetConfigType("json")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return cfg, err
	}

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	if !v.InConfig("mail") {
		return cfg, fmt.Errorf("%w: no mail settings in %s", ErrInvalidConfig, path)
	}
	if !v.InConfig("bot") {
		return cfg, fmt.Errorf("%w: no bot settings in %s", ErrInvalidConfig, path)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	interval, err := parseSeconds(v.Get("repeat_timeout"))
	if err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, PollIntervalEnv, err)
	}
	cfg.PollInterval = interval

	timeout, err := parseSeconds(v.Get("timeout"))
	if err != nil {
		return cfg, fmt.Errorf("%w: timeout: %v", ErrInvalidConfig, err)
	}
	cfg.Timeout = timeout

	cfg.Mail.PasswordSource = valueSource(cfg.Mail.Password, "mail.password")
	cfg.Bot.TokenSource = valueSource(cfg.Bot.Token, "bot.token")

	return cfg, nil
}

// bindEnv registers keys that may be absent from the file so that their
// environment overrides still reach Unmarshal.
func bindEnv(v *viper.Viper) error {
	if err := v.BindEnv("repeat_timeout", PollIntervalEnv); err != nil {
		return err
	}
	for _, key := range []string{"mail.host", "mail.username", "mail.password", "bot.token", "bot.chat_id", "keyring_backend"} {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func valueSource(value, key string) string {
	if value == "" {
		return ""
	}
	if _, ok := os.LookupEnv(envName(key)); ok {
		return "env"
	}
	return "config"
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("mail.port", cfg.Mail.Port)
	v.SetDefault("mail.tls", cfg.Mail.TLS)
	v.SetDefault("mail.starttls", cfg.Mail.StartTLS)
	v.SetDefault("mail.insecure_skip_verify", cfg.Mail.InsecureSkipVerify)
	v.SetDefault("mail.mailbox", cfg.Mail.Mailbox)

	v.SetDefault("repeat_timeout", cfg.PollInterval.Seconds())
	v.SetDefault("timeout", cfg.Timeout.Seconds())
}

func parseSeconds(value interface{}) (time.Duration, error) {
	seconds, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("expected seconds as a number, got %v", value)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func Redact(cfg Config) Config {
	masked := cfg
	if masked.Mail.Password != "" {
		masked.Mail.Password = "****"
	}
	if masked.Bot.Token != "" {
		masked.Bot.Token = "****"
	}
	return masked
}

// Validate checks that every field the relay needs is present. Credentials
// are checked here, after keyring lookups had a chance to fill them in.
func Validate(cfg Config) error {
	if err := ValidateMail(cfg); err != nil {
		return err
	}
	return ValidateBot(cfg)
}

func ValidateMail(cfg Config) error {
	if cfg.Mail.Host == "" {
		return fmt.Errorf("%w: mail.host is required", ErrInvalidConfig)
	}
	if cfg.Mail.Port <= 0 || cfg.Mail.Port > 65535 {
		return fmt.Errorf("%w: mail.port %d is out of range", ErrInvalidConfig, cfg.Mail.Port)
	}
	if cfg.Mail.Username == "" {
		return fmt.Errorf("%w: mail.username is required", ErrInvalidConfig)
	}
	if cfg.Mail.Password == "" {
		return fmt.Errorf("%w: mail.password is required", ErrInvalidConfig)
	}
	if len(cfg.Mail.SpecialSenders) == 0 {
		return fmt.Errorf("%w: mail.special_senders must list at least one sender", ErrInvalidConfig)
	}
	for i, sender := range cfg.Mail.SpecialSenders {
		if strings.TrimSpace(sender) == "" {
			return fmt.Errorf("%w: mail.special_senders[%d] is empty", ErrInvalidConfig, i)
		}
	}
	return nil
}

func ValidateBot(cfg Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("%w: bot.token is required", ErrInvalidConfig)
	}
	if cfg.Bot.ChatID == "" {
		return fmt.Errorf("%w: bot.chat_id is required", ErrInvalidConfig)
	}
	return nil
}
