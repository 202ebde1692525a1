package cli

import (
	"fmt"
	"log"

	"serpukhov-quiz-bot/internal/bank"
	"serpukhov-quiz-bot/internal/config"
	pgstore "serpukhov-quiz-bot/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads a questions.json file into the Postgres question bank.
func NewSeedCmd(configPath *string) *cobra.Command {
	var bankPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a question bank file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}

			path := bankPath
			if path == "" {
				path = cfg.Quiz.BankPath
			}
			if path == "" {
				path = "questions.json"
			}
			loaded, err := bank.NewFileSource(path).Load(cmd.Context())
			if err != nil {
				return err
			}
			questions, err := bank.Validate(loaded)
			if err != nil {
				return err
			}

			db := openBunDB(cfg.Postgres.URL)
			defer db.Close()

			if err := pgstore.SeedQuestions(cmd.Context(), db, questions); err != nil {
				return err
			}
			log.Printf("seeded %d questions from %s", len(questions), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&bankPath, "bank", "", "path to questions.json (defaults to quiz.bank_path)")
	return cmd
}
