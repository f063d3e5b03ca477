package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/response-guard/internal/model"
	"github.com/rcliao/response-guard/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search stored statements by keyword",
		Long:  "Full-text search over stored memory records, best match first.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("session", "s", "", "Filter by session")
	cmd.Flags().String("speaker", "", "Filter by speaker: user or system")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	speaker, _ := cmd.Flags().GetString("speaker")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	if speaker != "" && !model.ValidSpeakers[model.Speaker(speaker)] {
		exitErr("search", fmt.Errorf("unknown speaker %q", speaker))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Session: sessionID,
		Query:   query,
		Speaker: model.Speaker(speaker),
		Limit:   limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}
	printJSON(cmd, results)
}
