package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/response-guard/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check [candidate]",
		Short: "Vet one candidate response",
		Long: "Run one turn through the safety pipeline and print the final response and verdict. " +
			"The candidate is read from stdin when not given as arguments. Session memory is loaded " +
			"from and saved to the database.",
		Run: runCheck,
	}

	cmd.Flags().StringP("session", "s", "default", "Session ID")
	cmd.Flags().StringP("user", "u", "", "User input the candidate answers (required)")
	cmd.Flags().String("history-file", "", "File of earlier user inputs, one per line (default: session memory)")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	userInput, _ := cmd.Flags().GetString("user")
	historyFile, _ := cmd.Flags().GetString("history-file")

	candidate := strings.Join(args, " ")
	if candidate == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			exitErr("read stdin", err)
		}
		candidate = strings.TrimSpace(string(data))
	}
	if candidate == "" {
		exitErr("check", fmt.Errorf("candidate response is empty"))
	}

	var history []string
	if historyFile != "" {
		var err error
		if history, err = readLines(historyFile); err != nil {
			exitErr("read history", err)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	m := pipeline.NewManager(s, cfg.MemoryOptions(), logger)
	p := newPipeline(s, nil)

	res, err := p.Process(ctx, m.Open(ctx, sessionID), pipeline.Turn{
		Candidate: candidate,
		UserInput: userInput,
		History:   history,
	})
	if err != nil {
		exitErr("check", err)
	}
	if err := m.Close(ctx, sessionID); err != nil {
		exitErr("save session", err)
	}

	printJSON(cmd, res)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := []string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
