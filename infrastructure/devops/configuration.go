package devops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

type Config struct {
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Face     FaceConfig     `yaml:"face"`
	Slack    SlackConfig    `yaml:"slack"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

type DatabaseConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConnections int    `yaml:"maxConnections"`
	LogLevel       string `yaml:"logLevel"`
}

type AuthConfig struct {
	// SigningSecret is base64 encoded.
	SigningSecret string        `yaml:"signingSecret"`
	Issuer        string        `yaml:"issuer"`
	AdminTokenTTL time.Duration `yaml:"adminTokenTTL"`
	DeviceTTL     time.Duration `yaml:"deviceTokenTTL"`
	BcryptCost    int           `yaml:"bcryptCost"`
}

type FaceConfig struct {
	EnrollURL     string        `yaml:"enrollURL"`
	AttendanceURL string        `yaml:"attendanceURL"`
	DeviceID      string        `yaml:"deviceID"`
	DeviceSecret  string        `yaml:"deviceSecret"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SlackConfig struct {
	BotToken       string `yaml:"botToken"`
	InfoChannelID  string `yaml:"infoChannel"`
	ErrorChannelID string `yaml:"errorChannel"`
}

type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
}

func defaults() Config {
	return Config{
		Environment: "development",
		Port:        8090,
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxConnections: 10,
			LogLevel:       "warn",
		},
		Auth: AuthConfig{
			Issuer:        "punchinout",
			AdminTokenTTL: 24 * time.Hour,
			DeviceTTL:     30 * 24 * time.Hour,
			BcryptCost:    12,
		},
		Face: FaceConfig{
			EnrollURL:     "https://api.automica.ai/v1/enroll/json",
			AttendanceURL: "https://api.automica.ai/v1/attendance/json",
			Timeout:       30 * time.Second,
		},
	}
}

// Load builds the configuration. Sources, later ones winning: defaults, the
// YAML file named by CONFIG_PATH, the SSM parameter named by SSM_PARAMETER,
// environment variables (a .env file is loaded into the environment first).
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if name := os.Getenv("SSM_PARAMETER"); name != "" {
		doc, err := loadParameter(ctx, name)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal ssm yaml: %w", err)
		}
	}

	applyEnv(&cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadParameter(ctx context.Context, name string) (string, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := ssm.NewFromConfig(awsCfg)

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter: %w", err)
	}
	return aws.ToString(out.Parameter.Value), nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("ENVIRONMENT", &cfg.Environment)
	num("PORT", &cfg.Port)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("DSN", &cfg.Database.DSN)
	num("DB_MAX_CONNECTIONS", &cfg.Database.MaxConnections)
	str("DB_LOG_LEVEL", &cfg.Database.LogLevel)
	str("SIGNING_SECRET", &cfg.Auth.SigningSecret)
	str("AUTOMICA_ENROLL_URL", &cfg.Face.EnrollURL)
	str("AUTOMICA_ATTENDANCE_URL", &cfg.Face.AttendanceURL)
	str("AUTOMICA_DEVICE_ID", &cfg.Face.DeviceID)
	str("AUTOMICA_DEVICE_SECRET", &cfg.Face.DeviceSecret)
	str("SLACK_BOT_TOKEN", &cfg.Slack.BotToken)
	str("SLACK_INFO_CHANNEL", &cfg.Slack.InfoChannelID)
	str("SLACK_ERROR_CHANNEL", &cfg.Slack.ErrorChannelID)
	str("ARCHIVE_BUCKET", &cfg.Archive.Bucket)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.Auth.SigningSecret == "" {
		errs = append(errs, errors.New("auth signing secret is required"))
	}
	if c.Port <= 0 {
		errs = append(errs, errors.New("port must be positive"))
	}
	return errors.Join(errs...)
}
