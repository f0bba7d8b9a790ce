package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var startDuration time.Duration

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new round",
	Long:  `Start a new round with a fresh secret word. A round in progress ends with no winner.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, cleanup, err := newGameService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		duration := startDuration
		if duration == 0 {
			duration = cfg.GameDuration
		}

		session, err := service.StartSession(cmd.Context(), duration)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %d started, planned end %s\n",
			session.ID, session.PlannedEndAt.Local().Format(time.RFC1123))
		return nil
	},
}

func init() {
	startCmd.Flags().DurationVar(&startDuration, "duration", 0, "round duration (default GAME_DURATION)")
	rootCmd.AddCommand(startCmd)
}
