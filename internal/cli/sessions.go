package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and remove stored sessions",
}

func init() {
	show := &cobra.Command{
		Use:   "show SESSION",
		Short: "Show a stored session and its memory",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionShow,
	}

	sessionsCmd.AddCommand(show)
	RootCmd.AddCommand(sessionsCmd)
}

func runSessionShow(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	info, err := s.Session(ctx, args[0])
	if err != nil {
		exitErr("show", err)
	}
	snap, err := s.Load(ctx, args[0])
	if err != nil {
		exitErr("load session", err)
	}

	printJSON(cmd, struct {
		*store.SessionInfo
		Memory memory.Snapshot `json:"memory"`
	}{info, snap})
}
