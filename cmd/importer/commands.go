package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	bq "github.com/dvloznov/blueprint-importer/internal/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/logger"
	"github.com/dvloznov/blueprint-importer/internal/pipeline"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Import the source file (default command)",
		Args:  cobra.NoArgs,
		RunE:  a.runImport,
	}
}

// runImport executes one import. Per-document failures are reported on
// stdout and do not fail the command.
func (a *app) runImport(cmd *cobra.Command, _ []string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	res := &resources{log: a.log}
	defer res.Close()

	deps, err := a.dependencies(ctx, res)
	if err != nil {
		return err
	}

	state, err := pipeline.Run(ctx, pipelineConfig(a.cfg), deps)
	if err != nil {
		return err
	}
	if a.cfg.Import.DryRun {
		return nil
	}
	return pipeline.Report(a.out, state.Result)
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Resolve the target blueprint and print its importable fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx, cancel := a.withTimeout(cmd.Context())
			defer cancel()

			be, _, err := a.newBackend()
			if err != nil {
				return err
			}
			schema, err := pipeline.ResolveSchema(ctx, be, a.cfg.Caisy.ProjectID, a.cfg.Import.BlueprintName, a.cfg.Import.Allowlist)
			if err != nil {
				return err
			}
			return printSchema(a.out, a.cfg.Import.BlueprintName, schema)
		},
	}
}

func printSchema(w io.Writer, name string, schema *pipeline.ResolvedSchema) error {
	data := pterm.TableData{{"Name", "Field ID", "Type"}}
	for _, f := range schema.Fields {
		data = append(data, []string{f.Name, f.FieldID, f.Type})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "blueprint %s (%s)\n%s\n", name, schema.BlueprintID, table)
	return err
}

func (a *app) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent imports from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateLedger(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), ledgerTimeout)
			defer cancel()

			res := &resources{log: a.log}
			defer res.Close()

			repo, err := a.ledger(ctx, res)
			if err != nil {
				return err
			}
			rows, err := repo.ListRecentImportRuns(ctx, limit)
			if err != nil {
				return err
			}
			return printRuns(a.out, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func printRuns(w io.Writer, rows []*bq.ImportRunRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no import runs recorded")
		return err
	}

	data := pterm.TableData{{"Started", "Run ID", "Blueprint", "Status", "Rows", "Succeeded", "Failed", "Assets"}}
	for _, r := range rows {
		data = append(data, []string{
			r.StartedTS.Format(time.RFC3339),
			r.RunID,
			r.BlueprintName,
			r.Status,
			strconv.FormatInt(r.RowsRead, 10),
			strconv.FormatInt(r.DocumentsSucceeded, 10),
			strconv.FormatInt(r.DocumentsFailed, 10),
			fmt.Sprintf("%d/%d", r.AssetsRelocated, r.AssetsRelocated+r.AssetsFailed),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func (a *app) migrateCmd() *cobra.Command {
	var appliedBy string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the run ledger tables in BigQuery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateLedger(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), ledgerTimeout)
			defer cancel()

			res := &resources{log: a.log}
			defer res.Close()

			repo, err := a.ledger(ctx, res)
			if err != nil {
				return err
			}
			applied, err := repo.Migrate(ctx, appliedBy)
			if err != nil {
				return err
			}

			log := logger.FromContext(ctx)
			log.Info().
				Str("project", a.cfg.Ledger.ProjectID).
				Str("dataset", a.cfg.Ledger.DatasetID).
				Int("applied", applied).
				Msg("Migrations completed")
			_, err = fmt.Fprintf(a.out, "applied %d migrations\n", applied)
			return err
		},
	}
	cmd.Flags().StringVar(&appliedBy, "applied-by", "importer-cli", "name recorded with each applied migration")
	return cmd
}
