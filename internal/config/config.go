// Package config loads the importer settings from flags, the environment
// and an optional .env file.
package config

import (
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	BackendCaisy  = "caisy"
	BackendNotion = "notion"

	AssetStoreCaisy = "caisy"
	AssetStoreGCS   = "gcs"
	AssetStoreNone  = "none"

	EnvPrefix = "IMPORTER"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

type (
	Config struct {
		Backend string
		Caisy
		Notion
		Import
		Assets
		GCP
		Ledger
		Log
	}

	Caisy struct {
		Token     string
		ProjectID string
		Endpoint  string // empty uses the public API
	}
	Notion struct {
		Token      string
		IDProperty string
	}
	Import struct {
		BlueprintName   string
		Allowlist       []string
		RichTextColumns []string
		IDColumn        string
		TitleColumn     string
		AssetColumn     string
		StatusID        int
		SourcePath      string
		Delimiter       rune
		MaxConcurrency  int           // 0 is unbounded
		Timeout         time.Duration // 0 is none
		DryRun          bool
	}
	Assets struct {
		Store         string
		Bucket        string
		Prefix        string
		PublicBaseURL string
	}
	GCP struct {
		CredentialsFile string
	}
	Ledger struct {
		ProjectID string // empty disables the run ledger
		DatasetID string
	}
	Log struct {
		Level string
		JSON  bool
	}
)

// LedgerEnabled reports whether runs are recorded in BigQuery.
func (c *Config) LedgerEnabled() bool {
	return c.Ledger.ProjectID != ""
}

// NeedsGCS reports whether any configured component talks to Cloud Storage.
func (c *Config) NeedsGCS() bool {
	return c.Assets.Store == AssetStoreGCS || strings.HasPrefix(c.Import.SourcePath, "gs://")
}

// LoadDotEnv loads variables from path without overriding the real
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return errors.Wrapf(err, "LoadDotEnv: %s", path)
	}
	return nil
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	BindEnvVars(v)
	SetDefaults(v)
	return v
}

// BindEnvVars binds keys whose variables do not follow the prefix scheme.
func BindEnvVars(v *viper.Viper) {
	// The misspelled token variable is still accepted.
	_ = v.BindEnv(KeyCaisyToken, "CAISY_PRIVATE_ACCESS_TOKEN", "CAISY_PRIVATE_ACCES_TOKEN")
	_ = v.BindEnv(KeyCaisyProjectID, "CAISY_PROJECT_ID")
	_ = v.BindEnv(KeyNotionToken, "NOTION_TOKEN")
	_ = v.BindEnv(KeyCredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
}

// Load reads the configuration from v. It does not validate.
func Load(v *viper.Viper) (*Config, error) {
	delimiter, err := parseDelimiter(v.GetString(KeyDelimiter))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Backend: strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
		Caisy: Caisy{
			Token:     strings.TrimSpace(v.GetString(KeyCaisyToken)),
			ProjectID: strings.TrimSpace(v.GetString(KeyCaisyProjectID)),
			Endpoint:  v.GetString(KeyCaisyEndpoint),
		},
		Notion: Notion{
			Token:      strings.TrimSpace(v.GetString(KeyNotionToken)),
			IDProperty: v.GetString(KeyNotionIDProperty),
		},
		Import: Import{
			BlueprintName:   v.GetString(KeyBlueprint),
			Allowlist:       splitList(v.GetStringSlice(KeyAllowlist)),
			RichTextColumns: splitList(v.GetStringSlice(KeyRichTextColumns)),
			IDColumn:        v.GetString(KeyIDColumn),
			TitleColumn:     v.GetString(KeyTitleColumn),
			AssetColumn:     v.GetString(KeyAssetColumn),
			StatusID:        v.GetInt(KeyStatusID),
			SourcePath:      v.GetString(KeySource),
			Delimiter:       delimiter,
			MaxConcurrency:  v.GetInt(KeyMaxConcurrency),
			Timeout:         v.GetDuration(KeyTimeout),
			DryRun:          v.GetBool(KeyDryRun),
		},
		Assets: Assets{
			Store:         strings.ToLower(strings.TrimSpace(v.GetString(KeyAssetStore))),
			Bucket:        v.GetString(KeyGCSBucket),
			Prefix:        v.GetString(KeyGCSPrefix),
			PublicBaseURL: v.GetString(KeyGCSPublicURL),
		},
		GCP: GCP{
			CredentialsFile: v.GetString(KeyCredentialsFile),
		},
		Ledger: Ledger{
			ProjectID: v.GetString(KeyLedgerProject),
			DatasetID: v.GetString(KeyLedgerDataset),
		},
		Log: Log{
			Level: v.GetString(KeyLogLevel),
			JSON:  v.GetBool(KeyLogJSON),
		},
	}

	if cfg.Assets.Store == "" {
		cfg.Assets.Store = AssetStoreCaisy
		if cfg.Backend == BackendNotion {
			cfg.Assets.Store = AssetStoreNone
		}
	}

	return cfg, nil
}

// Validate checks that everything a run needs is present and consistent.
// Missing values are reported together.
func (c *Config) Validate() error {
	var missing []string
	var hints []string

	switch c.Backend {
	case BackendCaisy:
		if c.Caisy.Token == "" {
			missing = append(missing, "CAISY_PRIVATE_ACCESS_TOKEN")
		}
		if c.Caisy.ProjectID == "" {
			missing = append(missing, "CAISY_PROJECT_ID")
		}
		if len(missing) > 0 {
			hints = append(hints, "create a private access token in the Caisy project settings and export it with the project id, or put both in .env")
		}
	case BackendNotion:
		if c.Notion.Token == "" {
			missing = append(missing, "NOTION_TOKEN")
			hints = append(hints, "create a Notion integration and share the target database with it")
		}
	default:
		return errors.WithHintf(
			errors.Wrapf(ErrInvalidConfig, "unknown backend %q", c.Backend),
			"use --backend=%s or --backend=%s", BackendCaisy, BackendNotion)
	}

	if c.Import.BlueprintName == "" {
		missing = append(missing, KeyBlueprint)
	}
	if len(c.Import.Allowlist) == 0 {
		missing = append(missing, KeyAllowlist)
	}
	if c.Import.SourcePath == "" {
		missing = append(missing, KeySource)
	}

	switch c.Assets.Store {
	case AssetStoreCaisy:
		if c.Backend != BackendCaisy {
			return errors.WithHint(
				errors.Wrapf(ErrInvalidConfig, "asset store %q requires the caisy backend", c.Assets.Store),
				"use --asset-store=gcs or --asset-store=none with the notion backend")
		}
	case AssetStoreGCS:
		if c.Assets.Bucket == "" {
			missing = append(missing, KeyGCSBucket)
			hints = append(hints, "set --gcs-bucket to the bucket that receives relocated assets")
		}
	case AssetStoreNone:
	default:
		return errors.WithHintf(
			errors.Wrapf(ErrInvalidConfig, "unknown asset store %q", c.Assets.Store),
			"use one of %s, %s, %s", AssetStoreCaisy, AssetStoreGCS, AssetStoreNone)
	}

	if dup := firstDuplicate(c.Import.Allowlist); dup != "" {
		return errors.WithHintf(
			errors.Wrapf(ErrInvalidConfig, "allowlist names %q more than once", dup),
			"list every field once in %s", KeyAllowlist)
	}

	if c.Import.MaxConcurrency < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max concurrency must not be negative, got %d", c.Import.MaxConcurrency)
	}
	if c.Import.Timeout < 0 {
		return errors.Wrapf(ErrInvalidConfig, "timeout must not be negative, got %s", c.Import.Timeout)
	}

	if len(missing) == 0 {
		return nil
	}
	err := errors.Wrapf(ErrInvalidConfig, "missing required values: %s", strings.Join(missing, ", "))
	for _, h := range hints {
		err = errors.WithHint(err, h)
	}
	return err
}

// ValidateLedger checks the settings used by the ledger commands.
func (c *Config) ValidateLedger() error {
	if c.Ledger.ProjectID == "" || c.Ledger.DatasetID == "" {
		return errors.WithHint(
			errors.Wrap(ErrInvalidConfig, "run ledger is not configured"),
			"set --bigquery-project and --bigquery-dataset")
	}
	return nil
}

// splitList flattens comma separated entries, as environment values arrive
// as a single string.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "", ",":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, errors.WithHint(
			errors.Wrapf(ErrInvalidConfig, "delimiter %q must be a single character", s),
			`use "tab" for tab separated files`)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' {
		return 0, errors.Wrapf(ErrInvalidConfig, "delimiter %q is not allowed", s)
	}
	return r, nil
}

func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
