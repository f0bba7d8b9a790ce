package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cabotin-go/internal/game"
)

var thesaurusCount int

var thesaurusCmd = &cobra.Command{
	Use:   "thesaurus <term>",
	Short: "List the nearest words of a term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := loadWords(cmd.Context())
		if err != nil {
			return err
		}

		count := thesaurusCount
		if count <= 0 {
			count = cfg.ThesaurusDefaultCount
		}
		neighbors, err := ws.NearestNeighbors(game.ResolveTerm(ws, args[0]), count)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for i, n := range neighbors {
			fmt.Fprintf(w, "%d.\t%s\t%.4f\n", i+1, n.Term, n.Similarity)
		}
		return w.Flush()
	},
}

func init() {
	thesaurusCmd.Flags().IntVarP(&thesaurusCount, "count", "n", 0, "number of words (default THESAURUS_DEFAULT_COUNT)")
	rootCmd.AddCommand(thesaurusCmd)
}
