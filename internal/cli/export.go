package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export session memory as JSON",
		Long:  "Export stored session snapshots as a JSON array. Limit to one session with -s.",
		Run:   runExport,
	}

	cmd.Flags().StringP("session", "s", "", "Export only this session")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sessions, err := s.ExportAll(cmd.Context(), sessionID)
	if err != nil {
		exitErr("export", err)
	}

	printJSON(cmd, sessions)
}
