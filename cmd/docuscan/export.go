package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docuscan/docuscan/internal/common"
	"github.com/docuscan/docuscan/internal/entity"
	"github.com/docuscan/docuscan/internal/export"
	"github.com/docuscan/docuscan/internal/extraction"
	"github.com/docuscan/docuscan/internal/repository"
	"github.com/docuscan/docuscan/internal/template"
)

func newExportCmd() *cobra.Command {
	var (
		orgID       string
		outPath     string
		templateKey string
		inMemory    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reviewed scan records to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()
			cfg := common.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, pool, err := openStore(ctx, cfg, inMemory, logger)
			if err != nil {
				return err
			}
			defer repository.Close(db, pool, logger)
			if err := repository.Migrate(ctx, db, logger); err != nil {
				return err
			}
			scans := repository.NewScanRecordRepository(db, logger)

			var tpl *entity.Template
			if templateKey != "" {
				client := extraction.NewClient(extraction.Config{
					BaseURL:        cfg.Extraction.BaseURL,
					APIKey:         cfg.Extraction.APIKey,
					Timeout:        cfg.Extraction.Timeout,
					RetryAttempts:  cfg.Extraction.RetryAttempts,
					RetryBaseDelay: cfg.Extraction.RetryBaseDelay,
				}, logger)
				templates, err := client.ListTemplates(ctx)
				if err != nil {
					return fmt.Errorf("fetch templates: %w", err)
				}
				registry := template.NewRegistry(templates, logger)
				found, ok := registry.ByKey(templateKey)
				if !ok {
					return fmt.Errorf("unknown template %q", templateKey)
				}
				tpl = found
			}

			svc := export.NewService(scans, logger)
			data, err := svc.ExportReviewedXLSX(ctx, orgID, tpl)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Printf("wrote %s (%d bytes)\n", outPath, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&outPath, "out", "documents.xlsx", "Output workbook path")
	cmd.Flags().StringVar(&templateKey, "template", "", "Template key used to order the field columns")
	cmd.Flags().BoolVar(&inMemory, "inmem", false, "Use an in-memory scan record store instead of DB_URL")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
