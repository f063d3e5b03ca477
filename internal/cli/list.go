package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 100, "Max sessions")
	cmd.Flags().Bool("ids-only", false, "Only output session IDs")

	sessionsCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	infos, err := s.ListSessions(cmd.Context(), limit)
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, info := range infos {
			fmt.Fprintln(cmd.OutOrStdout(), info.ID)
		}
		return
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}
	printJSON(cmd, infos)
}
