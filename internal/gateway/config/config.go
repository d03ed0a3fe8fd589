package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `toml:"port"`
	Env         string `toml:"env"`
	DatabaseURL string `toml:"database_url"`
	SQLitePath  string `toml:"sqlite_path"`

	Artifact ArtifactConfig `toml:"artifact"`
	GitHub   GitHubConfig   `toml:"github"`
	LLM      LLMConfig      `toml:"llm"`
	Article  ArticleConfig  `toml:"article"`
	Analysis AnalysisConfig `toml:"analysis"`
}

type ArtifactConfig struct {
	Enabled   bool          `toml:"enabled"`
	Endpoint  string        `toml:"endpoint"`
	Region    string        `toml:"region"`
	AccessKey string        `toml:"access_key"`
	SecretKey string        `toml:"secret_key"`
	Bucket    string        `toml:"bucket"`
	UseSSL    bool          `toml:"use_ssl"`
	URLExpiry time.Duration `toml:"url_expiry"`

	sslFromFile bool
}

// CanUseS3 reports whether every field the S3 store needs is present.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled &&
		strings.TrimSpace(a.Endpoint) != "" &&
		strings.TrimSpace(a.AccessKey) != "" &&
		strings.TrimSpace(a.SecretKey) != "" &&
		strings.TrimSpace(a.Bucket) != ""
}

type GitHubConfig struct {
	APIBase   string        `toml:"api_base"`
	Token     string        `toml:"token"`
	Exclude   []string      `toml:"exclude"`
	CacheTTL  time.Duration `toml:"cache_ttl"`
	CacheSize int           `toml:"cache_size"`
}

type LLMConfig struct {
	APIKey     string  `toml:"api_key"`
	TextModel  string  `toml:"text_model"`
	ImageModel string  `toml:"image_model"`
	RPS        float64 `toml:"rps"`
	Burst      int     `toml:"burst"`
	Retries    int     `toml:"retries"`
}

type ArticleConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
}

type AnalysisConfig struct {
	MaxRuns    int           `toml:"max_runs"`
	RunTimeout time.Duration `toml:"run_timeout"`
}

func defaults() Config {
	return Config{
		Port: ":8081",
		Env:  "local",
		Artifact: ArtifactConfig{
			Region: "us-east-1",
			Bucket: "repolens-artifacts",
		},
		GitHub: GitHubConfig{
			APIBase:   "https://api.github.com",
			CacheTTL:  10 * time.Minute,
			CacheSize: 256,
		},
		LLM: LLMConfig{
			TextModel:  "gemini-2.5-flash",
			ImageModel: "gemini-2.5-flash-image",
			RPS:        1,
			Burst:      2,
			Retries:    3,
		},
		Article: ArticleConfig{MaxBytes: 2 << 20},
		Analysis: AnalysisConfig{
			MaxRuns:    512,
			RunTimeout: 5 * time.Minute,
		},
	}
}

func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs resolves configuration in order: .env, optional TOML file
// (-config or REPOLENS_CONFIG), environment, then the -port flag.
func LoadArgs(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", "", "server port")
	file := fs.String("config", "", "path to a TOML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := defaults()
	path := firstNonEmpty(strings.TrimSpace(*file), strings.TrimSpace(os.Getenv("REPOLENS_CONFIG")))
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(*port); p != "" {
		cfg.Port = p
	}
	cfg.Port = normalizePort(cfg.Port)
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.SQLitePath, "ARTIFACT_SQLITE_PATH")

	applyArtifactEnv(&cfg.Artifact, cfg.Env)

	setString(&cfg.GitHub.APIBase, "GITHUB_API_BASE")
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	if raw := strings.TrimSpace(os.Getenv("GITHUB_EXCLUDE")); raw != "" {
		cfg.GitHub.Exclude = splitList(raw)
	}
	if err := setDuration(&cfg.GitHub.CacheTTL, "GITHUB_CACHE_TTL"); err != nil {
		return err
	}

	setString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	setString(&cfg.LLM.TextModel, "GEMINI_TEXT_MODEL")
	setString(&cfg.LLM.ImageModel, "GEMINI_IMAGE_MODEL")
	if raw := strings.TrimSpace(os.Getenv("LLM_RPS")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("LLM_RPS: %w", err)
		}
		cfg.LLM.RPS = v
	}
	if err := setInt(&cfg.LLM.Burst, "LLM_BURST"); err != nil {
		return err
	}
	if err := setInt(&cfg.LLM.Retries, "LLM_RETRIES"); err != nil {
		return err
	}

	if raw := strings.TrimSpace(os.Getenv("ARTICLE_MAX_BYTES")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("ARTICLE_MAX_BYTES: %w", err)
		}
		cfg.Article.MaxBytes = v
	}
	return nil
}

// applyArtifactEnv reads the S3 settings. In the local environment the MinIO
// endpoint and root credentials are accepted as S3 settings.
func applyArtifactEnv(a *ArtifactConfig, env string) {
	local := strings.EqualFold(strings.TrimSpace(env), "local")
	if local {
		setString(&a.Endpoint, "ARTIFACT_MINIO_ENDPOINT")
		setString(&a.AccessKey, "MINIO_ROOT_USER")
		setString(&a.SecretKey, "MINIO_ROOT_PASSWORD")
	}
	setString(&a.Endpoint, "ARTIFACT_S3_ENDPOINT")
	setString(&a.Region, "ARTIFACT_S3_REGION")
	setString(&a.AccessKey, "ARTIFACT_S3_ACCESS_KEY")
	setString(&a.SecretKey, "ARTIFACT_S3_SECRET_KEY")
	setString(&a.Bucket, "ARTIFACT_S3_BUCKET")

	if raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			a.UseSSL = v
		}
	} else if !local && !a.sslFromFile && strings.TrimSpace(a.Endpoint) != "" {
		a.UseSSL = true
	}
	if strings.TrimSpace(a.Endpoint) != "" {
		a.Enabled = true
	}
}

func normalizePort(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ":8081"
	}
	if strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
