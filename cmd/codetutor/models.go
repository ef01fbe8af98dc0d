package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/credential"
)

var (
	baseURLFlag string
	apiKeyFlag  string
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"model"},
	Short:   "Manage judge model credentials",
	Long: `Manage the model endpoints and API keys used to judge code.

The first model listed is the one the judge uses.`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured models (keys masked)",
	RunE:  runModelsList,
}

var modelsAddCmd = &cobra.Command{
	Use:   "add <model-name>",
	Short: "Add or update a model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsAdd,
}

var modelsRemoveCmd = &cobra.Command{
	Use:     "remove <model-name>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a model",
	Args:    cobra.ExactArgs(1),
	RunE:    runModelsRemove,
}

func init() {
	modelsAddCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "OpenAI-compatible endpoint (default from judge.default_base_url)")
	modelsAddCmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "API key (default $CODETUTOR_API_KEY)")

	modelsCmd.AddCommand(modelsListCmd, modelsAddCmd, modelsRemoveCmd)
	rootCmd.AddCommand(modelsCmd)
}

func withStore(fn func(ctx context.Context, store credential.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openCredentials(cfg.Credentials)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(context.Background(), store)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store credential.Store) error {
		creds, err := store.Get(ctx)
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}
		if len(creds) == 0 {
			fmt.Println("No models configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tBASE URL\tAPI KEY")
		for i, c := range creds {
			c = c.Masked()
			name := c.ModelName
			if i == 0 {
				name += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, c.BaseURL, c.APIKey)
		}
		return w.Flush()
	})
}

func runModelsAdd(cmd *cobra.Command, args []string) error {
	key := apiKeyFlag
	if key == "" {
		key = os.Getenv("CODETUTOR_API_KEY")
	}
	if key == "" {
		return fmt.Errorf("an API key is required (--api-key or CODETUTOR_API_KEY)")
	}

	return withStore(func(ctx context.Context, store credential.Store) error {
		err := store.Upsert(ctx, credential.Credential{
			ModelName: args[0],
			BaseURL:   baseURLFlag,
			APIKey:    key,
		})
		if err != nil {
			return fmt.Errorf("saving model: %w", err)
		}
		fmt.Printf("Model key saved: %s\n", args[0])
		return nil
	})
}

func runModelsRemove(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store credential.Store) error {
		if err := store.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("removing model: %w", err)
		}
		fmt.Printf("Model key removed: %s\n", args[0])
		return nil
	})
}
