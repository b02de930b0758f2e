// Command vectorize-admin is an operator CLI for running one enqueue cycle
// by hand, without waiting on the external cron scheduler, and for
// inspecting how a transformer identifier resolves.
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/tembo-io/vectorize-core/internal/config"
	"github.com/tembo-io/vectorize-core/internal/detector"
	"github.com/tembo-io/vectorize-core/internal/providers"
	"github.com/tembo-io/vectorize-core/internal/queue"
	"github.com/tembo-io/vectorize-core/internal/registry"
	"github.com/tembo-io/vectorize-core/internal/tokenizer"
	"github.com/tembo-io/vectorize-core/internal/transformer"
	"github.com/tembo-io/vectorize-core/internal/triggers"
)

var rootCmd = &cobra.Command{
	Use:   "vectorize-admin",
	Short: "Operator CLI for the vectorize job engine",
}

func main() {
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(resolveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// tickCmd runs one cron-tick cycle for a named job: detect pending rows,
// batch them, and send the resulting messages onto the work queue.
func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick <job>",
		Short: "Run one enqueue cycle for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			db, err := sql.Open("pgx", cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			est, err := tokenizer.NewEstimator()
			if err != nil {
				return err
			}

			reg := registry.New(registry.NewPostgresStore(db))
			det := detector.New(db, est)
			q := queue.New(db, cfg.QueueName, cfg.VisibilityTimeout)
			tr := triggers.New(reg, det, q)

			n, err := tr.Tick(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d batch(es) for job %q\n", n, args[0])
			return nil
		},
	}
}

// resolveCmd parses a transformer identifier and prints the provider it
// resolves to. Without --probe-dim it makes no network call; with it, it
// also asks the provider for the model's dimension, which is a network call
// for providers that have no static dimension table.
func resolveCmd() *cobra.Command {
	var probeDim bool

	cmd := &cobra.Command{
		Use:   "resolve <transformer>",
		Short: "Parse a transformer identifier and print its resolved provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := transformer.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "source=%s model=%s\n", m.Source, m.Name)

			if !probeDim {
				return nil
			}

			cfg, err := config.New()
			if err != nil {
				return err
			}
			providerCfg := providers.Config{
				OpenAIAPIKey:            cfg.OpenAIAPIKey,
				CohereAPIKey:            cfg.CohereAPIKey,
				SentenceTransformersURL: cfg.SentenceTransformersURL,
				OllamaURL:               cfg.OllamaURL,
				PortkeyAPIKey:           cfg.PortkeyAPIKey,
				PortkeyVirtualKey:       cfg.PortkeyVirtualKey,
				VoyageAPIKey:            cfg.VoyageAPIKey,
				TemboAPIKey:             cfg.TemboAPIKey,
			}
			provider, err := providers.Get(m.Source, providerCfg)
			if err != nil {
				return err
			}
			dim, err := provider.ModelDim(cmd.Context(), m.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model_dim=%d\n", dim)
			return nil
		},
	}
	cmd.Flags().BoolVar(&probeDim, "probe-dim", false, "also query the provider for the model's embedding dimension")
	return cmd
}
