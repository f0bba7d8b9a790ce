package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"cabotin-go/config"
	"cabotin-go/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cabotin",
	Short: "Cabotin - find the secret word by semantic closeness",
	Long: `Cabotin is a chat word game. A secret word is drawn from a word2vec
vocabulary; players guess words and are told how close they are.

Example usage:
  cabotin migrate              # Create or upgrade the game database
  cabotin serve --console      # Dashboard + chat on stdin
  cabotin start --duration 2h  # Start a new round
  cabotin thesaurus chien -n 5 # Nearest words`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}
