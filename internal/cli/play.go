package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var playNick string

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play in the terminal",
	Long: `Chat with the bot from the terminal. Every line is sent as --nick.
Say the bot's name to wake it, then type single words to guess.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if playNick == "" {
			return errors.New("--nick is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		service, cleanup, err := newGameService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Fprintf(cmd.OutOrStdout(), "playing as %s, say %q to wake the bot\n", playNick, cfg.BotName)
		return chatLoop(ctx, newChatHandler(service), cmd.InOrStdin(), cmd.OutOrStdout(), fixedNick(playNick))
	},
}

func init() {
	playCmd.Flags().StringVar(&playNick, "nick", os.Getenv("USER"), "your nickname")
	rootCmd.AddCommand(playCmd)
}
