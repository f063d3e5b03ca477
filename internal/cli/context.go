package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/response-guard/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [input]",
		Short: "Assemble memory context for an input",
		Long: "Load a stored session and print the prior statements relevant to the input, " +
			"with the dominant emotion, top topics and latest summary.",
		Args: cobra.MinimumNArgs(1),
		Run:  runContext,
	}

	cmd.Flags().StringP("session", "s", "default", "Session ID")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	input := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if _, err := s.Session(ctx, sessionID); err != nil {
		exitErr("context", err)
	}
	snap, err := s.Load(ctx, sessionID)
	if err != nil {
		exitErr("load session", err)
	}

	mem := memory.New(cfg.MemoryOptions())
	mem.Restore(snap)
	printJSON(cmd, mem.ContextFor(input))
}
