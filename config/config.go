package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"sectorflow/feature"
	"sectorflow/models"
)

const dateLayout = "2006-01-02"

type Config struct {
	Sectorflow SectorflowConfig `yaml:"sectorflow"`
	Data       DataConfig       `yaml:"data"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Features   FeaturesConfig   `yaml:"features"`
	Writer     WriterConfig     `yaml:"writer"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Verify     VerifyConfig     `yaml:"verify"`
}

type SectorflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type DataConfig struct {
	HeadlineFile string         `yaml:"headline_file"`
	PriceDir     string         `yaml:"price_dir"`
	Sectors      []SectorConfig `yaml:"sectors"`
	StartDate    string         `yaml:"start_date"`
	EndDate      string         `yaml:"end_date"`
}

type SectorConfig struct {
	Name      string `yaml:"name"`
	PriceFile string `yaml:"price_file"`
}

// PriceFilePath resolves the sector's price snapshot location; an explicit
// price_file wins over the <price_dir>/<name>.csv convention.
func (s SectorConfig) PriceFilePath(priceDir string) string {
	if s.PriceFile != "" {
		return s.PriceFile
	}
	return filepath.Join(priceDir, s.Name+".csv")
}

type CalendarConfig struct {
	// SlackDays extends the trading calendar past the configured end date so
	// next-day targets near the boundary still find their successor.
	SlackDays int `yaml:"slack_days"`
}

type PipelineConfig struct {
	MaxWorkers    int      `yaml:"max_workers"`
	MinHeadlines  int      `yaml:"min_headlines"`
	Policies      []string `yaml:"policies"`
	HeadlineLevel bool     `yaml:"headline_level"`
}

type FeaturesConfig struct {
	Lags       []feature.LagSpec       `yaml:"lags"`
	Indicators []feature.IndicatorSpec `yaml:"indicators"`
}

type WriterConfig struct {
	OutputDir string        `yaml:"output_dir"`
	Formats   FormatsConfig `yaml:"formats"`
}

type FormatsConfig struct {
	CSV     CSVConfig     `yaml:"csv"`
	Parquet ParquetConfig `yaml:"parquet"`
}

type CSVConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled           bool   `yaml:"enabled"`
	Bucket            string `yaml:"bucket"`
	Prefix            string `yaml:"prefix"`
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	PathStyle         bool   `yaml:"path_style"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
	UploadsPerSecond  int    `yaml:"uploads_per_second"`
	UploadBurst       int    `yaml:"upload_burst"`
	UploadConcurrency int    `yaml:"upload_concurrency"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

type VerifyConfig struct {
	Enabled bool `yaml:"enabled"`
	// FailFast aborts the run on the first alignment violation instead of
	// logging every mismatch and finishing the remaining sectors.
	FailFast bool `yaml:"fail_fast"`
}

// envOverrides are the environment variables that take precedence over file
// values, mirroring how the deployment injects credentials.
type envOverrides struct {
	AWSAccessKeyID     string   `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string   `envconfig:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string   `envconfig:"AWS_REGION"`
	S3Bucket           string   `envconfig:"S3_BUCKET"`
	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS"`
	LogLevel           string   `envconfig:"LOG_LEVEL"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Calendar: CalendarConfig{SlackDays: 10},
		Pipeline: PipelineConfig{MaxWorkers: 4, MinHeadlines: 1},
		Writer: WriterConfig{
			OutputDir: "data/output",
			Formats:   FormatsConfig{CSV: CSVConfig{Enabled: true}},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if config.Storage.S3.Enabled {
		if env.AWSAccessKeyID != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(env.AWSAccessKeyID)
		}
		if env.AWSSecretAccessKey != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(env.AWSSecretAccessKey)
		}
		if env.AWSRegion != "" {
			config.Storage.S3.Region = strings.TrimSpace(env.AWSRegion)
		}
		if env.S3Bucket != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(env.S3Bucket)
		}
	}
	if config.Storage.Kafka.Enabled && len(env.KafkaBrokers) > 0 {
		config.Storage.Kafka.Brokers = env.KafkaBrokers
	}
	if env.LogLevel != "" {
		config.Logging.Level = strings.TrimSpace(env.LogLevel)
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// DateRange parses the configured start and end dates.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, c.Data.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("data.start_date: %w", err)
	}
	end, err := time.Parse(dateLayout, c.Data.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end_date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end_date %s precedes data.start_date %s", c.Data.EndDate, c.Data.StartDate)
	}
	return models.Day(start), models.Day(end), nil
}

var allPolicies = []models.AlignmentPolicy{
	{Weekend: models.WeekendPresent, WithEmbeddings: false},
	{Weekend: models.WeekendPresent, WithEmbeddings: true},
	{Weekend: models.WeekendAggregated, WithEmbeddings: false},
	{Weekend: models.WeekendAggregated, WithEmbeddings: true},
}

// Policies resolves the configured policy slugs. An empty list selects all
// four dataset variants.
func (c *Config) Policies() ([]models.AlignmentPolicy, error) {
	if len(c.Pipeline.Policies) == 0 {
		return append([]models.AlignmentPolicy(nil), allPolicies...), nil
	}
	var out []models.AlignmentPolicy
	for _, slug := range c.Pipeline.Policies {
		found := false
		for _, p := range allPolicies {
			if p.Slug() == slug || p.Version() == slug {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, &models.InvalidPolicyError{Policy: slug}
		}
	}
	return out, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Sectorflow.Name == "" {
		return fmt.Errorf("sectorflow.name is required")
	}
	if cfg.Sectorflow.Version == "" {
		return fmt.Errorf("sectorflow.version is required")
	}

	if cfg.Data.HeadlineFile == "" {
		return fmt.Errorf("data.headline_file is required")
	}
	if len(cfg.Data.Sectors) == 0 {
		return fmt.Errorf("data.sectors must name at least one sector")
	}
	seen := make(map[string]bool, len(cfg.Data.Sectors))
	for _, s := range cfg.Data.Sectors {
		if s.Name == "" {
			return fmt.Errorf("data.sectors entries require a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("data.sectors lists %s twice", s.Name)
		}
		seen[s.Name] = true
		if s.PriceFile == "" && cfg.Data.PriceDir == "" {
			return fmt.Errorf("sector %s has no price_file and data.price_dir is unset", s.Name)
		}
	}
	if _, _, err := cfg.DateRange(); err != nil {
		return err
	}

	if cfg.Calendar.SlackDays < 0 {
		return fmt.Errorf("calendar.slack_days must not be negative")
	}
	if cfg.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("pipeline.max_workers must be greater than 0")
	}
	if cfg.Pipeline.MinHeadlines < 1 {
		return fmt.Errorf("pipeline.min_headlines must be at least 1")
	}
	if _, err := cfg.Policies(); err != nil {
		return err
	}

	if !cfg.Writer.Formats.CSV.Enabled && !cfg.Writer.Formats.Parquet.Enabled {
		return fmt.Errorf("writer.formats must enable at least one output format")
	}
	if cfg.Writer.OutputDir == "" {
		return fmt.Errorf("writer.output_dir is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}
	if cfg.Storage.Kafka.Enabled && len(cfg.Storage.Kafka.Brokers) == 0 {
		return fmt.Errorf("storage.kafka.brokers is required when kafka is enabled")
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
