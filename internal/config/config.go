package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	CORS       CORSConfig
	Router     RouterConfig
	Parser     ParserConfig
	OCR        OCRConfig
	Pipeline   PipelineConfig
	Thresholds ThresholdsConfig
	Validation ValidationConfig
	Scoring    ScoringConfig
	Schema     SchemaConfig
	Storage    StorageConfig
	DB         DBConfig
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RouterConfig holds document routing settings.
type RouterConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// ParserProviderConfig holds settings for a single LLM provider.
type ParserProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
	// BaseURL overrides the provider endpoint (proxies, tests).
	BaseURL   string `mapstructure:"base_url"`
	ProjectID string `mapstructure:"project_id"`
	Region    string `mapstructure:"region"`
}

// ParserConfig holds LLM provider settings with ordered fallback.
type ParserConfig struct {
	// Mode is "fallback" (try providers in order) or "merge" (extract with the first two
	// providers in parallel and merge their candidates).
	Mode      string               `mapstructure:"mode"`
	Primary   ParserProviderConfig `mapstructure:"primary"`
	Secondary ParserProviderConfig `mapstructure:"secondary"`
	Tertiary  ParserProviderConfig `mapstructure:"tertiary"`
}

// PrimaryConfig returns the primary provider config.
func (p *ParserConfig) PrimaryConfig() *ParserProviderConfig {
	return &p.Primary
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (p *ParserConfig) SecondaryConfig() *ParserProviderConfig {
	if p.Secondary.Provider != "" {
		return &p.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary provider config, or nil if not configured.
func (p *ParserConfig) TertiaryConfig() *ParserProviderConfig {
	if p.Tertiary.Provider != "" {
		return &p.Tertiary
	}
	return nil
}

// Providers returns the configured providers in fallback order.
func (p *ParserConfig) Providers() []*ParserProviderConfig {
	var out []*ParserProviderConfig
	if p.Primary.Provider != "" {
		out = append(out, &p.Primary)
	}
	if s := p.SecondaryConfig(); s != nil {
		out = append(out, s)
	}
	if t := p.TertiaryConfig(); t != nil {
		out = append(out, t)
	}
	return out
}

// OCRConfig holds tesseract settings.
type OCRConfig struct {
	Binary             string        `mapstructure:"binary"`
	PdftoppmBinary     string        `mapstructure:"pdftoppm_binary"`
	Language           string        `mapstructure:"language"`
	PSM                int           `mapstructure:"psm"`
	OEM                int           `mapstructure:"oem"`
	DPI                int           `mapstructure:"dpi"`
	MinTokenConfidence float64       `mapstructure:"min_token_confidence"`
	Concurrency        int           `mapstructure:"concurrency"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

// PipelineConfig holds orchestration policies.
type PipelineConfig struct {
	MaxRetries       int           `mapstructure:"max_retries"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	RouterTimeout    time.Duration `mapstructure:"router_timeout"`
	ExtractTimeout   time.Duration `mapstructure:"extract_timeout"`
	MaxOCRChars      int           `mapstructure:"max_ocr_chars"`
	MaxPages         int           `mapstructure:"max_pages"`
	MaxFileSizeMB    int64         `mapstructure:"max_file_size_mb"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	DocumentTimeout  time.Duration `mapstructure:"document_timeout"`
}

// ThresholdsConfig holds the review thresholds applied outside the record.
type ThresholdsConfig struct {
	MinFieldConfidence   float64 `mapstructure:"min_field_confidence"`
	MinOverallConfidence float64 `mapstructure:"min_overall_confidence"`
}

// ValidationConfig holds format patterns and rule tolerances.
type ValidationConfig struct {
	EmailPattern  string             `mapstructure:"email_pattern"`
	PhonePattern  string             `mapstructure:"phone_pattern"`
	DatePattern   string             `mapstructure:"date_pattern"`
	AmountPattern string             `mapstructure:"amount_pattern"`
	Tolerances    map[string]float64 `mapstructure:"tolerances"`
}

// ScoringConfig holds the confidence weights.
type ScoringConfig struct {
	LLMWeight       float64 `mapstructure:"llm_weight"`
	OCRWeight       float64 `mapstructure:"ocr_weight"`
	FormatWeight    float64 `mapstructure:"format_weight"`
	RelevanceWeight float64 `mapstructure:"relevance_weight"`
}

// SchemaConfig points at an optional schema override file.
type SchemaConfig struct {
	File           string `mapstructure:"file"`
	DisableGeneric bool   `mapstructure:"disable_generic"`
}

// StorageConfig selects and configures the archive backend.
type StorageConfig struct {
	// Provider is one of none, s3 or gcs.
	Provider string    `mapstructure:"provider"`
	S3       S3Config  `mapstructure:"s3"`
	GCS      GCSConfig `mapstructure:"gcs"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var toleranceRules = []string{"totals_match", "subtotal_tax_match", "balance_consistency", "insurance_split_match"}

// Load reads configuration from environment variables with the DOCEXTRACT_ prefix and,
// when DOCEXTRACT_CONFIG_FILE is set, from a YAML file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	v.SetDefault("router.min_confidence", 0.5)

	// Parser defaults
	for _, tier := range []string{"primary", "secondary", "tertiary"} {
		v.SetDefault("parser."+tier+".provider", "")
		v.SetDefault("parser."+tier+".api_key", "")
		v.SetDefault("parser."+tier+".default_model", "")
		v.SetDefault("parser."+tier+".max_retries", 2)
		v.SetDefault("parser."+tier+".timeout_secs", 120)
		v.SetDefault("parser."+tier+".base_url", "")
		v.SetDefault("parser."+tier+".project_id", "")
		v.SetDefault("parser."+tier+".region", "us-central1")
	}
	v.SetDefault("parser.primary.provider", "openai")
	v.SetDefault("parser.mode", "fallback")

	// OCR defaults
	v.SetDefault("ocr.binary", "tesseract")
	v.SetDefault("ocr.pdftoppm_binary", "pdftoppm")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.psm", 3)
	v.SetDefault("ocr.oem", 1)
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.min_token_confidence", 0.30)
	v.SetDefault("ocr.concurrency", 4)
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("ocr.max_retries", 1)

	// Pipeline defaults
	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.initial_backoff", "500ms")
	v.SetDefault("pipeline.max_backoff", "10s")
	v.SetDefault("pipeline.router_timeout", "60s")
	v.SetDefault("pipeline.extract_timeout", "120s")
	v.SetDefault("pipeline.max_ocr_chars", 30000)
	v.SetDefault("pipeline.max_pages", 20)
	v.SetDefault("pipeline.max_file_size_mb", 25)
	v.SetDefault("pipeline.batch_concurrency", 4)
	v.SetDefault("pipeline.document_timeout", "5m")

	v.SetDefault("thresholds.min_field_confidence", 0.5)
	v.SetDefault("thresholds.min_overall_confidence", 0.7)

	// Validation defaults (empty patterns use the built-in regexes)
	v.SetDefault("validation.email_pattern", "")
	v.SetDefault("validation.phone_pattern", "")
	v.SetDefault("validation.date_pattern", "")
	v.SetDefault("validation.amount_pattern", "")
	for _, id := range toleranceRules {
		v.SetDefault("validation.tolerances."+id, 0.01)
	}

	// Scoring defaults
	v.SetDefault("scoring.llm_weight", 0.40)
	v.SetDefault("scoring.ocr_weight", 0.30)
	v.SetDefault("scoring.format_weight", 0.20)
	v.SetDefault("scoring.relevance_weight", 0.10)

	v.SetDefault("schema.file", "")
	v.SetDefault("schema.disable_generic", false)

	// Storage defaults
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "docextract-archive")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.credentials_file", "")

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "docextract")
	v.SetDefault("db.password", "docextract_secret")
	v.SetDefault("db.name", "docextract_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                       "DOCEXTRACT_SERVER_PORT",
		"server.read_timeout":               "DOCEXTRACT_SERVER_READ_TIMEOUT",
		"server.write_timeout":              "DOCEXTRACT_SERVER_WRITE_TIMEOUT",
		"server.environment":                "DOCEXTRACT_SERVER_ENVIRONMENT",
		"log.level":                         "DOCEXTRACT_LOG_LEVEL",
		"log.format":                        "DOCEXTRACT_LOG_FORMAT",
		"cors.allowed_origins":              "DOCEXTRACT_CORS_ALLOWED_ORIGINS",
		"router.min_confidence":             "DOCEXTRACT_ROUTER_MIN_CONFIDENCE",
		"parser.mode":                       "DOCEXTRACT_PARSER_MODE",
		"ocr.binary":                        "DOCEXTRACT_OCR_BINARY",
		"ocr.pdftoppm_binary":               "DOCEXTRACT_OCR_PDFTOPPM_BINARY",
		"ocr.language":                      "DOCEXTRACT_OCR_LANGUAGE",
		"ocr.psm":                           "DOCEXTRACT_OCR_PSM",
		"ocr.oem":                           "DOCEXTRACT_OCR_OEM",
		"ocr.dpi":                           "DOCEXTRACT_OCR_DPI",
		"ocr.min_token_confidence":          "DOCEXTRACT_OCR_MIN_TOKEN_CONFIDENCE",
		"ocr.concurrency":                   "DOCEXTRACT_OCR_CONCURRENCY",
		"ocr.timeout":                       "DOCEXTRACT_OCR_TIMEOUT",
		"ocr.max_retries":                   "DOCEXTRACT_OCR_MAX_RETRIES",
		"pipeline.max_retries":              "DOCEXTRACT_PIPELINE_MAX_RETRIES",
		"pipeline.initial_backoff":          "DOCEXTRACT_PIPELINE_INITIAL_BACKOFF",
		"pipeline.max_backoff":              "DOCEXTRACT_PIPELINE_MAX_BACKOFF",
		"pipeline.router_timeout":           "DOCEXTRACT_PIPELINE_ROUTER_TIMEOUT",
		"pipeline.extract_timeout":          "DOCEXTRACT_PIPELINE_EXTRACT_TIMEOUT",
		"pipeline.max_ocr_chars":            "DOCEXTRACT_PIPELINE_MAX_OCR_CHARS",
		"pipeline.max_pages":                "DOCEXTRACT_PIPELINE_MAX_PAGES",
		"pipeline.max_file_size_mb":         "DOCEXTRACT_PIPELINE_MAX_FILE_SIZE_MB",
		"pipeline.batch_concurrency":        "DOCEXTRACT_PIPELINE_BATCH_CONCURRENCY",
		"pipeline.document_timeout":         "DOCEXTRACT_PIPELINE_DOCUMENT_TIMEOUT",
		"thresholds.min_field_confidence":   "DOCEXTRACT_THRESHOLDS_MIN_FIELD_CONFIDENCE",
		"thresholds.min_overall_confidence": "DOCEXTRACT_THRESHOLDS_MIN_OVERALL_CONFIDENCE",
		"validation.email_pattern":          "DOCEXTRACT_VALIDATION_EMAIL_PATTERN",
		"validation.phone_pattern":          "DOCEXTRACT_VALIDATION_PHONE_PATTERN",
		"validation.date_pattern":           "DOCEXTRACT_VALIDATION_DATE_PATTERN",
		"validation.amount_pattern":         "DOCEXTRACT_VALIDATION_AMOUNT_PATTERN",
		"scoring.llm_weight":                "DOCEXTRACT_SCORING_LLM_WEIGHT",
		"scoring.ocr_weight":                "DOCEXTRACT_SCORING_OCR_WEIGHT",
		"scoring.format_weight":             "DOCEXTRACT_SCORING_FORMAT_WEIGHT",
		"scoring.relevance_weight":          "DOCEXTRACT_SCORING_RELEVANCE_WEIGHT",
		"schema.file":                       "DOCEXTRACT_SCHEMA_FILE",
		"schema.disable_generic":            "DOCEXTRACT_SCHEMA_DISABLE_GENERIC",
		"storage.provider":                  "DOCEXTRACT_STORAGE_PROVIDER",
		"storage.s3.region":                 "DOCEXTRACT_STORAGE_S3_REGION",
		"storage.s3.bucket":                 "DOCEXTRACT_STORAGE_S3_BUCKET",
		"storage.s3.endpoint":               "DOCEXTRACT_STORAGE_S3_ENDPOINT",
		"storage.s3.access_key":             "DOCEXTRACT_STORAGE_S3_ACCESS_KEY",
		"storage.s3.secret_key":             "DOCEXTRACT_STORAGE_S3_SECRET_KEY",
		"storage.gcs.bucket":                "DOCEXTRACT_STORAGE_GCS_BUCKET",
		"storage.gcs.credentials_file":      "DOCEXTRACT_STORAGE_GCS_CREDENTIALS_FILE",
		"db.enabled":                        "DOCEXTRACT_DB_ENABLED",
		"db.host":                           "DOCEXTRACT_DB_HOST",
		"db.port":                           "DOCEXTRACT_DB_PORT",
		"db.user":                           "DOCEXTRACT_DB_USER",
		"db.password":                       "DOCEXTRACT_DB_PASSWORD",
		"db.name":                           "DOCEXTRACT_DB_NAME",
		"db.sslmode":                        "DOCEXTRACT_DB_SSLMODE",
		"db.max_open":                       "DOCEXTRACT_DB_MAX_OPEN",
		"db.max_idle":                       "DOCEXTRACT_DB_MAX_IDLE",
	}
	for _, tier := range []string{"primary", "secondary", "tertiary"} {
		for _, field := range []string{"provider", "api_key", "default_model", "max_retries", "timeout_secs", "base_url", "project_id", "region"} {
			key := "parser." + tier + "." + field
			envBindings[key] = "DOCEXTRACT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
	}
	for _, id := range toleranceRules {
		key := "validation.tolerances." + id
		envBindings[key] = "DOCEXTRACT_VALIDATION_TOLERANCES_" + strings.ToUpper(id)
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if file := os.Getenv("DOCEXTRACT_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	cfg := &Config{}

	// Platform-provided PORT is used unless DOCEXTRACT_SERVER_PORT is set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOCEXTRACT_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Router = RouterConfig{MinConfidence: v.GetFloat64("router.min_confidence")}

	provider := func(tier string) ParserProviderConfig {
		p := "parser." + tier + "."
		return ParserProviderConfig{
			Provider:     v.GetString(p + "provider"),
			APIKey:       v.GetString(p + "api_key"),
			DefaultModel: v.GetString(p + "default_model"),
			MaxRetries:   v.GetInt(p + "max_retries"),
			TimeoutSecs:  v.GetInt(p + "timeout_secs"),
			BaseURL:      v.GetString(p + "base_url"),
			ProjectID:    v.GetString(p + "project_id"),
			Region:       v.GetString(p + "region"),
		}
	}
	cfg.Parser = ParserConfig{
		Mode:      v.GetString("parser.mode"),
		Primary:   provider("primary"),
		Secondary: provider("secondary"),
		Tertiary:  provider("tertiary"),
	}

	cfg.OCR = OCRConfig{
		Binary:             v.GetString("ocr.binary"),
		PdftoppmBinary:     v.GetString("ocr.pdftoppm_binary"),
		Language:           v.GetString("ocr.language"),
		PSM:                v.GetInt("ocr.psm"),
		OEM:                v.GetInt("ocr.oem"),
		DPI:                v.GetInt("ocr.dpi"),
		MinTokenConfidence: v.GetFloat64("ocr.min_token_confidence"),
		Concurrency:        v.GetInt("ocr.concurrency"),
		Timeout:            v.GetDuration("ocr.timeout"),
		MaxRetries:         v.GetInt("ocr.max_retries"),
	}

	cfg.Pipeline = PipelineConfig{
		MaxRetries:       v.GetInt("pipeline.max_retries"),
		InitialBackoff:   v.GetDuration("pipeline.initial_backoff"),
		MaxBackoff:       v.GetDuration("pipeline.max_backoff"),
		RouterTimeout:    v.GetDuration("pipeline.router_timeout"),
		ExtractTimeout:   v.GetDuration("pipeline.extract_timeout"),
		MaxOCRChars:      v.GetInt("pipeline.max_ocr_chars"),
		MaxPages:         v.GetInt("pipeline.max_pages"),
		MaxFileSizeMB:    v.GetInt64("pipeline.max_file_size_mb"),
		BatchConcurrency: v.GetInt("pipeline.batch_concurrency"),
		DocumentTimeout:  v.GetDuration("pipeline.document_timeout"),
	}

	cfg.Thresholds = ThresholdsConfig{
		MinFieldConfidence:   v.GetFloat64("thresholds.min_field_confidence"),
		MinOverallConfidence: v.GetFloat64("thresholds.min_overall_confidence"),
	}

	tolerances := make(map[string]float64, len(toleranceRules))
	for _, id := range toleranceRules {
		tolerances[id] = v.GetFloat64("validation.tolerances." + id)
	}
	cfg.Validation = ValidationConfig{
		EmailPattern:  v.GetString("validation.email_pattern"),
		PhonePattern:  v.GetString("validation.phone_pattern"),
		DatePattern:   v.GetString("validation.date_pattern"),
		AmountPattern: v.GetString("validation.amount_pattern"),
		Tolerances:    tolerances,
	}

	cfg.Scoring = ScoringConfig{
		LLMWeight:       v.GetFloat64("scoring.llm_weight"),
		OCRWeight:       v.GetFloat64("scoring.ocr_weight"),
		FormatWeight:    v.GetFloat64("scoring.format_weight"),
		RelevanceWeight: v.GetFloat64("scoring.relevance_weight"),
	}

	cfg.Schema = SchemaConfig{
		File:           v.GetString("schema.file"),
		DisableGeneric: v.GetBool("schema.disable_generic"),
	}

	cfg.Storage = StorageConfig{
		Provider: v.GetString("storage.provider"),
		S3: S3Config{
			Region:    v.GetString("storage.s3.region"),
			Bucket:    v.GetString("storage.s3.bucket"),
			Endpoint:  v.GetString("storage.s3.endpoint"),
			AccessKey: v.GetString("storage.s3.access_key"),
			SecretKey: v.GetString("storage.s3.secret_key"),
		},
		GCS: GCSConfig{
			Bucket:          v.GetString("storage.gcs.bucket"),
			CredentialsFile: v.GetString("storage.gcs.credentials_file"),
		},
	}

	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}

	return cfg, nil
}
