package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/blueprint-importer/internal/logger"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration represents a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Migrator applies the embedded ledger migrations to one dataset.
type Migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
}

// NewMigrator creates a Migrator over a shared client.
func NewMigrator(client *bigquery.Client, projectID, datasetID, appliedBy string) *Migrator {
	return &Migrator{client: client, projectID: projectID, datasetID: datasetID, appliedBy: appliedBy}
}

// Apply runs every pending migration in version order and returns how many ran.
func (m *Migrator) Apply(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	migrations, err := ReadMigrations(embeddedMigrations, "migrations", m.projectID, m.datasetID)
	if err != nil {
		return 0, err
	}
	log.Info().Int("migration_count", len(migrations)).Msg("Found migration files")

	// The first migration creates schema_migrations itself.
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	appliedVersions := make(map[int]bool, len(applied))
	for _, am := range applied {
		appliedVersions[am.Version] = true
	}

	appliedCount := 0
	for _, migration := range migrations {
		if appliedVersions[migration.Version] {
			log.Debug().Int("version", migration.Version).Str("name", migration.Name).Msg("Migration already applied")
			continue
		}

		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Applying migration")
		if err := m.run(ctx, migration.SQL); err != nil {
			return appliedCount, fmt.Errorf("Apply: migration %04d_%s: %w", migration.Version, migration.Name, err)
		}
		if err := m.record(ctx, migration); err != nil {
			return appliedCount, fmt.Errorf("Apply: recording %04d_%s: %w", migration.Version, migration.Name, err)
		}
		appliedCount++
	}

	return appliedCount, nil
}

// ReadMigrations reads all migration files under dir, substitutes the
// project and dataset placeholders and sorts them by version. Checksums
// are taken over the file content before substitution.
func ReadMigrations(fsys fs.FS, dir, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading %s: %w", dir, err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading file %s: %w", entry.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, m.projectID, m.datasetID)

	it, err := m.client.Query(sql).Read(ctx)
	if err != nil {
		// The table does not exist before the first migration.
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("appliedMigrations: reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time `bigquery:"applied_at"`
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("appliedMigrations: iterating results: %w", err)
		}

		am := AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
		}
		if row.Checksum.Valid {
			am.Checksum = row.Checksum.StringVal
		}
		if row.AppliedBy.Valid {
			am.AppliedBy = row.AppliedBy.StringVal
		}
		applied = append(applied, am)
	}

	return applied, nil
}

func (m *Migrator) run(ctx context.Context, sql string) error {
	job, err := m.client.Query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

func (m *Migrator) record(ctx context.Context, migration Migration) error {
	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+` (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, @applied_at, @checksum, @applied_by)
	`, m.projectID, m.datasetID))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "applied_at", Value: time.Now()},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running insert: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	return status.Err()
}
