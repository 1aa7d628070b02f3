package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/batch"
	"github.com/docuscan/docuscan/internal/common"
	"github.com/docuscan/docuscan/internal/entity"
	"github.com/docuscan/docuscan/internal/extraction"
	"github.com/docuscan/docuscan/internal/repository"
	"github.com/docuscan/docuscan/internal/review"
	"github.com/docuscan/docuscan/internal/storage"
	"github.com/docuscan/docuscan/internal/template"
)

type processOptions struct {
	dir           string
	templateKey   string
	orgID         string
	operator      string
	inMemory      bool
	delay         time.Duration
	excludes      []string
	autoSave      bool
	templatesFile string
}

func newProcessCmd() *cobra.Command {
	opts := processOptions{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Dispatch a directory of document images for extraction",
		Long: `Process scans a directory for document images, dispatches them one by one
to the extraction service under the selected template, and prints per-item
progress followed by a batch summary. Completed extractions are mirrored into
the scan record store so they can be reviewed and exported later.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory of document images to process (required)")
	cmd.Flags().StringVar(&opts.templateKey, "template", constants.AutoDetectKey, "Template key, or auto_detect")
	cmd.Flags().StringVar(&opts.orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&opts.operator, "operator", "", "Operator user ID (required)")
	cmd.Flags().BoolVar(&opts.inMemory, "inmem", false, "Use an in-memory scan record store instead of DB_URL")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "Inter-item delay override (default from BATCH_ITEM_DELAY)")
	cmd.Flags().StringSliceVar(&opts.excludes, "exclude", nil, "Filenames to drop from the batch before dispatch")
	cmd.Flags().BoolVar(&opts.autoSave, "auto-save", false, "Save every completed item without field errors as reviewed")
	cmd.Flags().StringVar(&opts.templatesFile, "templates-file", "", "Load the template catalogue from a local JSON file instead of the service")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

func runProcess(ctx context.Context, opts processOptions) error {
	logger := newLogger()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := extraction.NewClient(extraction.Config{
		BaseURL:        cfg.Extraction.BaseURL,
		APIKey:         cfg.Extraction.APIKey,
		Timeout:        cfg.Extraction.Timeout,
		RetryAttempts:  cfg.Extraction.RetryAttempts,
		RetryBaseDelay: cfg.Extraction.RetryBaseDelay,
	}, logger)

	var (
		templates []entity.Template
		err       error
	)
	if opts.templatesFile != "" {
		templates, err = template.LoadFile(opts.templatesFile)
	} else {
		templates, err = client.ListTemplates(ctx)
	}
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	registry := template.NewRegistry(templates, logger)
	resolver, err := template.NewResolver(registry, opts.templateKey, logger)
	if err != nil {
		return err
	}

	items, stats, err := batch.IntakeDirectory(opts.dir, logger)
	if err != nil {
		return err
	}
	logger.Info("intake.done",
		"scanned", stats.Scanned, "matched", stats.Matched,
		"accepted", stats.Accepted, "failed", stats.Failed)
	for _, name := range opts.excludes {
		for _, it := range items {
			if it.Payload.Filename == name {
				items = batch.RemoveItem(items, it.ID)
				break
			}
		}
	}
	if len(items) == 0 {
		return fmt.Errorf("no processable documents in %s", opts.dir)
	}

	db, pool, err := openStore(ctx, cfg, opts.inMemory, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db, pool, logger)
	if err := repository.Migrate(ctx, db, logger); err != nil {
		return err
	}
	scans := repository.NewScanRecordRepository(db, logger)

	var uploader batch.ObjectUploader
	if cfg.Storage.Endpoint != "" {
		store, err := storage.New(cfg.Storage, logger)
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		uploader = store
	}

	tracker, err := batch.NewTracker(items)
	if err != nil {
		return err
	}

	delay := cfg.Batch.InterItemDelay
	if opts.delay > 0 {
		delay = opts.delay
	}
	coord := batch.NewCoordinator(batch.CoordinatorConfig{
		Tracker:        tracker,
		Service:        client,
		Resolver:       resolver,
		OrgID:          opts.orgID,
		Operator:       opts.operator,
		InterItemDelay: delay,
		Records:        scans,
		Objects:        uploader,
		Logger:         logger,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range coord.Events() {
			switch ev.To {
			case constants.ItemProcessing:
				fmt.Printf("processing %s\n", itemName(tracker, ev.ItemID))
			case constants.ItemCompleted:
				fmt.Printf("completed  %s (%d/%d)\n",
					itemName(tracker, ev.ItemID), ev.Stats.Completed+ev.Stats.Failed, ev.Stats.Total)
			case constants.ItemFailed:
				fmt.Printf("failed     %s: %s (%d/%d)\n",
					itemName(tracker, ev.ItemID), ev.Error, ev.Stats.Completed+ev.Stats.Failed, ev.Stats.Total)
			}
		}
	}()

	runErr := coord.Run(ctx)
	<-done

	adapter := review.NewAdapter(tracker, resolver, scans, opts.orgID, logger)
	printSummary(tracker, adapter)

	if opts.autoSave {
		autoSaveCompleted(ctx, tracker, adapter, opts.operator, logger)
	}
	return runErr
}

func openStore(ctx context.Context, cfg *common.Config, inMemory bool, logger *slog.Logger) (*sql.DB, *pgxpool.Pool, error) {
	if inMemory || cfg.Database.DSN == "" {
		db, err := repository.OpenInMemory(logger)
		return db, nil, err
	}
	return repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
}

func itemName(tracker *batch.Tracker, id uuid.UUID) string {
	if it, ok := tracker.Item(id); ok {
		return it.Payload.Filename
	}
	return id.String()
}

func printSummary(tracker *batch.Tracker, adapter *review.Adapter) {
	stats := tracker.Stats()
	fmt.Printf("\nbatch done: %d total, %d completed, %d failed\n",
		stats.Total, stats.Completed, stats.Failed)
	for _, it := range tracker.Items() {
		if it.Status != constants.ItemCompleted {
			continue
		}
		fmt.Printf("\n%s (scan %s)\n", it.Payload.Filename, it.Outcome.ScanID)
		fields, err := adapter.Fields(it.ID)
		if err != nil {
			continue
		}
		for _, f := range fields {
			line := fmt.Sprintf("  %-24s %s", f.Label, f.Value)
			if f.Error != "" {
				line += "  [" + f.Error + "]"
			}
			fmt.Println(line)
		}
	}
}

func autoSaveCompleted(ctx context.Context, tracker *batch.Tracker, adapter *review.Adapter, operator string, logger *slog.Logger) {
	for _, it := range tracker.Items() {
		if it.Status != constants.ItemCompleted {
			continue
		}
		if len(it.Outcome.ValidationErrors) > 0 {
			logger.Info("autosave.skip", "item_id", it.ID, "reason", "validation errors present")
			continue
		}
		if err := adapter.Save(ctx, it.ID, operator); err != nil {
			logger.Error("autosave.failed", "item_id", it.ID, "error", err)
			continue
		}
		logger.Info("autosave.done", "item_id", it.ID, "scan_id", it.Outcome.ScanID)
	}
}
