package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dvloznov/blueprint-importer/internal/notionsync"
	"github.com/dvloznov/blueprint-importer/internal/pipeline"
	"github.com/dvloznov/blueprint-importer/internal/source"
)

const (
	KeyBackend = "backend"

	KeyCaisyToken     = "caisy.token"
	KeyCaisyProjectID = "caisy.project_id"
	KeyCaisyEndpoint  = "caisy.endpoint"

	KeyNotionToken      = "notion.token"
	KeyNotionIDProperty = "notion.id_property"

	KeyBlueprint       = "import.blueprint"
	KeyAllowlist       = "import.allowlist"
	KeyRichTextColumns = "import.rich_text_columns"
	KeyIDColumn        = "import.id_column"
	KeyTitleColumn     = "import.title_column"
	KeyAssetColumn     = "import.asset_column"
	KeyStatusID        = "import.status_id"
	KeySource          = "import.source"
	KeyDelimiter       = "import.delimiter"
	KeyMaxConcurrency  = "import.max_concurrency"
	KeyTimeout         = "import.timeout"
	KeyDryRun          = "import.dry_run"

	KeyAssetStore   = "assets.store"
	KeyGCSBucket    = "assets.gcs_bucket"
	KeyGCSPrefix    = "assets.gcs_prefix"
	KeyGCSPublicURL = "assets.gcs_public_url"

	KeyCredentialsFile = "gcp.credentials_file"
	KeyLedgerProject   = "ledger.project"
	KeyLedgerDataset   = "ledger.dataset"

	KeyLogLevel = "log.level"
	KeyLogJSON  = "log.json"
)

// Default values. The column layout matches a blog post export.
const (
	DefaultBlueprint        = pipeline.DefaultBlueprintName
	DefaultSource           = source.DefaultPath
	DefaultIDColumn         = pipeline.DefaultIDColumn
	DefaultTitleColumn      = pipeline.DefaultTitleColumn
	DefaultRichTextColumn   = pipeline.DefaultRichTextColumn
	DefaultAssetColumn      = pipeline.DefaultAssetColumn
	DefaultStatusID         = pipeline.DefaultStatusID
	DefaultNotionIDProperty = notionsync.DefaultIDProperty
	DefaultLedgerDataset    = "importer"
	DefaultLogLevel         = "info"
)

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackend, BackendCaisy)

	v.SetDefault(KeyNotionIDProperty, DefaultNotionIDProperty)

	v.SetDefault(KeyBlueprint, DefaultBlueprint)
	v.SetDefault(KeyAllowlist, pipeline.DefaultAllowlist())
	v.SetDefault(KeyRichTextColumns, []string{DefaultRichTextColumn})
	v.SetDefault(KeyIDColumn, DefaultIDColumn)
	v.SetDefault(KeyTitleColumn, DefaultTitleColumn)
	v.SetDefault(KeyAssetColumn, DefaultAssetColumn)
	v.SetDefault(KeyStatusID, DefaultStatusID)
	v.SetDefault(KeySource, DefaultSource)
	v.SetDefault(KeyDelimiter, ",")
	v.SetDefault(KeyMaxConcurrency, 0)
	v.SetDefault(KeyTimeout, "0s")
	v.SetDefault(KeyDryRun, false)

	v.SetDefault(KeyLedgerDataset, DefaultLedgerDataset)

	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogJSON, false)
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":            KeyBackend,
	"caisy-endpoint":     KeyCaisyEndpoint,
	"notion-id-property": KeyNotionIDProperty,
	"blueprint":          KeyBlueprint,
	"allowlist":          KeyAllowlist,
	"rich-text-columns":  KeyRichTextColumns,
	"id-column":          KeyIDColumn,
	"title-column":       KeyTitleColumn,
	"asset-column":       KeyAssetColumn,
	"status-id":          KeyStatusID,
	"source":             KeySource,
	"delimiter":          KeyDelimiter,
	"max-concurrency":    KeyMaxConcurrency,
	"timeout":            KeyTimeout,
	"dry-run":            KeyDryRun,
	"asset-store":        KeyAssetStore,
	"gcs-bucket":         KeyGCSBucket,
	"gcs-prefix":         KeyGCSPrefix,
	"gcs-public-url":     KeyGCSPublicURL,
	"credentials-file":   KeyCredentialsFile,
	"bigquery-project":   KeyLedgerProject,
	"bigquery-dataset":   KeyLedgerDataset,
	"log-level":          KeyLogLevel,
	"log-json":           KeyLogJSON,
}

// RegisterFlags defines the configuration flags on fs. Flag defaults are
// zero values; the effective defaults come from SetDefaults so that the
// environment still applies when a flag is not set.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("backend", "", "content backend: caisy or notion")
	fs.String("caisy-endpoint", "", "Caisy GraphQL endpoint override")
	fs.String("notion-id-property", "", "Notion property holding the document id")

	fs.StringP("blueprint", "b", "", "blueprint name (Notion: database id)")
	fs.StringSlice("allowlist", nil, "field names to import")
	fs.StringSlice("rich-text-columns", nil, "columns converted from HTML to rich text")
	fs.String("id-column", "", "column holding the document id")
	fs.String("title-column", "", "column holding the document title")
	fs.String("asset-column", "", "column holding the external asset URL")
	fs.Int("status-id", 0, "document status id written with every document")
	fs.StringP("source", "s", "", "source file path or gs:// URI")
	fs.String("delimiter", "", `field delimiter, a single character or "tab"`)
	fs.Int("max-concurrency", 0, "maximum concurrent asset relocations (0 is unbounded)")
	fs.Duration("timeout", 0, "overall run timeout (0 is none)")
	fs.Bool("dry-run", false, "print the document requests instead of writing them")

	fs.String("asset-store", "", "asset store: caisy, gcs or none")
	fs.String("gcs-bucket", "", "bucket receiving relocated assets")
	fs.String("gcs-prefix", "", "object prefix for relocated assets")
	fs.String("gcs-public-url", "", "public base URL of the asset bucket")
	fs.String("credentials-file", "", "GCP service account credentials file")
	fs.String("bigquery-project", "", "GCP project of the run ledger (empty disables it)")
	fs.String("bigquery-dataset", "", "BigQuery dataset of the run ledger")

	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Bool("log-json", false, "log as JSON instead of console output")
}

// BindFlags binds every registered flag present in fs to its key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
