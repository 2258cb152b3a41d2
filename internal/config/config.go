package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/invoice-reconciliation/internal/reconcile/discrepancy"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/matcher"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/resolution"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Lark       LarkConfig       `mapstructure:"lark"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Tolerances TolerancesConfig `mapstructure:"tolerances"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Inbox      InboxConfig      `mapstructure:"inbox"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	UploadDir      string        `mapstructure:"upload_dir"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// CatalogConfig points at the purchase order catalog (.json, .yaml, .xlsx or .db)
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// OpenAIConfig holds the extraction and review model settings
type OpenAIConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PromptsPath  string        `mapstructure:"prompts_path"`
	MaxPages     int           `mapstructure:"max_pages"`
}

// LarkConfig holds the escalation chat settings
type LarkConfig struct {
	AppID            string `mapstructure:"app_id"`
	AppSecret        string `mapstructure:"app_secret"`
	EscalationChatID string `mapstructure:"escalation_chat_id"`
}

// PipelineConfig holds stage timeouts
type PipelineConfig struct {
	ExtractionTimeout time.Duration `mapstructure:"extraction_timeout"`
	ReviewTimeout     time.Duration `mapstructure:"review_timeout"`
	ReviewEnabled     bool          `mapstructure:"review_enabled"`
}

// MatchingConfig holds the PO matcher thresholds and confidence caps
type MatchingConfig struct {
	ExactConfidence        float64 `mapstructure:"exact_confidence"`
	SupplierThreshold      float64 `mapstructure:"supplier_threshold"`
	SupplierProductMinimum float64 `mapstructure:"supplier_product_minimum"`
	TotalTolerance         float64 `mapstructure:"total_tolerance"`
	SupplierProductCap     float64 `mapstructure:"supplier_product_cap"`
	ProductOnlyThreshold   float64 `mapstructure:"product_only_threshold"`
	ProductOnlyMinRate     float64 `mapstructure:"product_only_min_rate"`
	ProductOnlyCap         float64 `mapstructure:"product_only_cap"`
	LineItemThreshold      float64 `mapstructure:"line_item_threshold"`
	SupplierMatchThreshold float64 `mapstructure:"supplier_match_threshold"`
	AlternativesBelow      float64 `mapstructure:"alternatives_below"`
	AlternativeThreshold   float64 `mapstructure:"alternative_threshold"`
	MaxAlternatives        int     `mapstructure:"max_alternatives"`
}

// ThresholdsConfig holds the resolution decision boundaries
type ThresholdsConfig struct {
	ExtractionAutoApprove float64 `mapstructure:"extraction_auto_approve"`
	ExtractionEscalate    float64 `mapstructure:"extraction_escalate"`
	MatchAutoApprove      float64 `mapstructure:"match_auto_approve"`
	MatchEscalate         float64 `mapstructure:"match_escalate"`
	MaxDiscrepancies      int     `mapstructure:"max_discrepancies"`
}

// TolerancesConfig holds the discrepancy bands
type TolerancesConfig struct {
	PriceAutoApprove  float64 `mapstructure:"price_auto_approve"`
	PriceHighSeverity float64 `mapstructure:"price_high_severity"`
	PriceEscalate     float64 `mapstructure:"price_escalate"`
	QuantityMedium    float64 `mapstructure:"quantity_medium"`
	TotalAmount       float64 `mapstructure:"total_amount"`
	TotalPercent      float64 `mapstructure:"total_percent"`
	TotalHighPercent  float64 `mapstructure:"total_high_percent"`
}

// StorageConfig holds output locations
type StorageConfig struct {
	ResultsDir string `mapstructure:"results_dir"`
	ReportDir  string `mapstructure:"report_dir"`
}

// InboxConfig holds the inbox worker settings
type InboxConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Dir            string        `mapstructure:"dir"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LoadDotEnv loads KEY=value pairs from path into the environment. A missing
// file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from an optional YAML file and the environment
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.upload_dir", os.TempDir())
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("openai.retry_backoff", 30*time.Second)
	v.SetDefault("openai.max_pages", 2)

	v.SetDefault("pipeline.extraction_timeout", 2*time.Minute)
	v.SetDefault("pipeline.review_timeout", time.Minute)
	v.SetDefault("pipeline.review_enabled", true)

	m := matcher.DefaultConfig()
	v.SetDefault("matching.exact_confidence", m.ExactConfidence)
	v.SetDefault("matching.supplier_threshold", m.SupplierThreshold)
	v.SetDefault("matching.supplier_product_minimum", m.SupplierProductMinimum)
	v.SetDefault("matching.total_tolerance", m.TotalTolerance)
	v.SetDefault("matching.supplier_product_cap", m.SupplierProductCap)
	v.SetDefault("matching.product_only_threshold", m.ProductOnlyThreshold)
	v.SetDefault("matching.product_only_min_rate", m.ProductOnlyMinRate)
	v.SetDefault("matching.product_only_cap", m.ProductOnlyCap)
	v.SetDefault("matching.line_item_threshold", m.LineItemThreshold)
	v.SetDefault("matching.supplier_match_threshold", m.SupplierMatchThreshold)
	v.SetDefault("matching.alternatives_below", m.AlternativesBelow)
	v.SetDefault("matching.alternative_threshold", m.AlternativeThreshold)
	v.SetDefault("matching.max_alternatives", m.MaxAlternatives)

	v.SetDefault("thresholds.extraction_auto_approve", 0.90)
	v.SetDefault("thresholds.extraction_escalate", 0.70)
	v.SetDefault("thresholds.match_auto_approve", 0.95)
	v.SetDefault("thresholds.match_escalate", 0.50)
	v.SetDefault("thresholds.max_discrepancies", 3)

	v.SetDefault("tolerances.price_auto_approve", 0.02)
	v.SetDefault("tolerances.price_high_severity", 0.05)
	v.SetDefault("tolerances.price_escalate", 0.15)
	v.SetDefault("tolerances.quantity_medium", 0.10)
	v.SetDefault("tolerances.total_amount", 5.0)
	v.SetDefault("tolerances.total_percent", 1.0)
	v.SetDefault("tolerances.total_high_percent", 10.0)

	v.SetDefault("storage.results_dir", "data/results")
	v.SetDefault("storage.report_dir", "data/reports")

	v.SetDefault("inbox.enabled", false)
	v.SetDefault("inbox.dir", "data/inbox")
	v.SetDefault("inbox.poll_interval", 10*time.Second)
	v.SetDefault("inbox.batch_size", 5)
	v.SetDefault("inbox.process_timeout", 3*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps the conventional variable names onto config keys
func bindEnvVars(v *viper.Viper) error {
	for key, env := range map[string]string{
		"openai.api_key":          "OPENAI_API_KEY",
		"openai.base_url":         "OPENAI_BASE_URL",
		"catalog.path":            "PO_CATALOG_PATH",
		"lark.app_id":             "LARK_APP_ID",
		"lark.app_secret":         "LARK_APP_SECRET",
		"lark.escalation_chat_id": "LARK_ESCALATION_CHAT_ID",
		"logger.level":            "LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai.max_retries must be >= 0, got %d", c.OpenAI.MaxRetries)
	}
	if c.Inbox.Enabled && c.Inbox.Dir == "" {
		return fmt.Errorf("inbox.dir is required when the inbox is enabled")
	}
	if err := c.MatcherConfig().Validate(); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if err := c.ResolutionThresholds().Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if err := c.DiscrepancyTolerances().Validate(); err != nil {
		return fmt.Errorf("tolerances: %w", err)
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}

// ExtractionEnabled reports whether documents can be sent for extraction
func (c *Config) ExtractionEnabled() bool {
	return c.OpenAI.APIKey != ""
}

// MatcherConfig returns the configured matching thresholds
func (c *Config) MatcherConfig() matcher.Config {
	return matcher.Config{
		ExactConfidence:        c.Matching.ExactConfidence,
		SupplierThreshold:      c.Matching.SupplierThreshold,
		SupplierProductMinimum: c.Matching.SupplierProductMinimum,
		TotalTolerance:         c.Matching.TotalTolerance,
		SupplierProductCap:     c.Matching.SupplierProductCap,
		ProductOnlyThreshold:   c.Matching.ProductOnlyThreshold,
		ProductOnlyMinRate:     c.Matching.ProductOnlyMinRate,
		ProductOnlyCap:         c.Matching.ProductOnlyCap,
		LineItemThreshold:      c.Matching.LineItemThreshold,
		SupplierMatchThreshold: c.Matching.SupplierMatchThreshold,
		AlternativesBelow:      c.Matching.AlternativesBelow,
		AlternativeThreshold:   c.Matching.AlternativeThreshold,
		MaxAlternatives:        c.Matching.MaxAlternatives,
	}
}

// ResolutionThresholds returns the configured decision boundaries
func (c *Config) ResolutionThresholds() resolution.Thresholds {
	t := resolution.DefaultThresholds()
	t.ExtractionAutoApprove = c.Thresholds.ExtractionAutoApprove
	t.ExtractionEscalate = c.Thresholds.ExtractionEscalate
	t.MatchAutoApprove = c.Thresholds.MatchAutoApprove
	t.MatchEscalate = c.Thresholds.MatchEscalate
	t.MaxDiscrepancies = c.Thresholds.MaxDiscrepancies
	return t
}

// DiscrepancyTolerances returns the configured discrepancy bands
func (c *Config) DiscrepancyTolerances() discrepancy.Tolerances {
	t := discrepancy.DefaultTolerances()
	t.PriceAutoApprove = c.Tolerances.PriceAutoApprove
	t.PriceHighSeverity = c.Tolerances.PriceHighSeverity
	t.PriceEscalate = c.Tolerances.PriceEscalate
	t.QuantityMedium = c.Tolerances.QuantityMedium
	t.TotalAmount = c.Tolerances.TotalAmount
	t.TotalPercent = c.Tolerances.TotalPercent
	t.TotalHighPercent = c.Tolerances.TotalHighPercent
	return t
}
