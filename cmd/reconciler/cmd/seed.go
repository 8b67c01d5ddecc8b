package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoice-reconciliation-service/internal/fixtures"
	"invoice-reconciliation-service/internal/store"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

var submissionsFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample scenarios into a development database",
	Long: `Seed migrates the schema and persists the persisted side of every sample
scenario (duplicate, line item drift, payment regression, removed tax id,
amount discrepancy). Invoices whose number already exists are skipped.

With --submissions the matching submissions, plus one invoice that has no
persisted counterpart, are written as JSONL for use with 'reconcile'.

Examples:
  reconciler seed --db-dsn sqlite:invoices.db --submissions submissions.jsonl
  reconciler reconcile --db-dsn sqlite:invoices.db --input submissions.jsonl`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&submissionsFile, "submissions", "", "write the scenario submissions to this JSONL file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig(settings)
	if err != nil {
		return err
	}
	log := logger.GetGlobalLogger().WithComponent("cli")
	ctx := cmd.Context()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return errors.StoreError(errors.CodeStoreQuery, "migrate", err)
	}

	reader := store.NewGormStore(db.DB)
	scenarios := fixtures.Scenarios()
	inserted := 0
	for _, s := range scenarios {
		if s.Persisted == nil {
			continue
		}

		number := s.Persisted.Number()
		existing, err := reader.FindByNumber(ctx, number)
		if err != nil {
			return errors.StoreError(errors.CodeStoreQuery, "seed", err)
		}
		if existing != nil {
			log.WithField("invoice_number", number).Debug("Invoice already seeded")
			continue
		}

		id, err := store.InsertInvoice(ctx, db.DB, s.Persisted)
		if err != nil {
			return errors.StoreError(errors.CodeStoreQuery, "seed", err)
		}
		inserted++
		log.WithFields(logger.Fields{
			"invoice_number": number,
			"invoice_id":     id,
			"scenario":       s.Name,
		}).Info("Seeded invoice")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d invoices\n", inserted)

	if submissionsFile == "" {
		return nil
	}
	if err := writeSubmissions(submissionsFile, scenarios); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d submissions to %s\n", len(scenarios), submissionsFile)
	return nil
}

func writeSubmissions(path string, scenarios []fixtures.Scenario) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.InputFileError(path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, s := range scenarios {
		if err := enc.Encode(s.Submitted); err != nil {
			return errors.InternalError(errors.CodeProcessingError, "write submissions", err)
		}
	}
	return file.Close()
}
