package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docuscan/docuscan/internal/common"
	"github.com/docuscan/docuscan/internal/entity"
	"github.com/docuscan/docuscan/internal/extraction"
	"github.com/docuscan/docuscan/internal/template"
)

func newTemplatesCmd() *cobra.Command {
	var templatesFile string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the extraction templates the service offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			var (
				templates []entity.Template
				err       error
			)
			if templatesFile != "" {
				templates, err = template.LoadFile(templatesFile)
			} else {
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
				templates, err = client.ListTemplates(cmd.Context())
			}
			if err != nil {
				return err
			}
			registry := template.NewRegistry(templates, logger)
			for _, cat := range registry.Categories() {
				fmt.Println(cat.Name)
				for _, tpl := range cat.Templates {
					fmt.Printf("  %-20s %s (%d fields)\n", tpl.Key, tpl.Name, len(tpl.Fields))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&templatesFile, "templates-file", "", "Load the template catalogue from a local JSON file instead of the service")
	return cmd
}
