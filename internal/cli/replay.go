package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/response-guard/internal/pipeline"
)

// ReplayReport is the outcome of replaying one transcript.
type ReplayReport struct {
	File    string            `json:"file"`
	Session string            `json:"session"`
	Turns   int               `json:"turns"`
	Actions map[string]int    `json:"actions"`
	Results []pipeline.Result `json:"results,omitempty"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "replay FILE...",
		Short: "Replay JSONL transcripts through the pipeline",
		Long: "Each file is one session; each line is a turn object " +
			`{"user": "...", "candidate": "..."} with optional "history" and "prior_responses". ` +
			"Files are processed concurrently; turns within a file run in order.",
		Args: cobra.MinimumNArgs(1),
		Run:  runReplay,
	}

	cmd.Flags().IntP("parallel", "p", 4, "Max transcripts processed at once")
	cmd.Flags().String("metrics-out", "", "Write Prometheus metrics in text format to this file")
	cmd.Flags().Bool("persist", false, "Load and save session memory in the database")
	cmd.Flags().Bool("summary", false, "Omit per-turn results")

	RootCmd.AddCommand(cmd)
}

func runReplay(cmd *cobra.Command, args []string) {
	parallel, _ := cmd.Flags().GetInt("parallel")
	metricsOut, _ := cmd.Flags().GetString("metrics-out")
	persist, _ := cmd.Flags().GetBool("persist")
	summary, _ := cmd.Flags().GetBool("summary")

	var ps pipeline.Persister
	if persist {
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		ps = s
	}

	reg := prometheus.NewRegistry()
	p := newPipeline(ps, pipeline.NewMetrics(reg))
	m := pipeline.NewManager(ps, cfg.MemoryOptions(), logger)

	reports, err := replayFiles(cmd.Context(), p, m, args, parallel)
	if err != nil {
		exitErr("replay", err)
	}
	if err := m.CloseAll(cmd.Context()); err != nil {
		exitErr("save sessions", err)
	}
	if metricsOut != "" {
		if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
			exitErr("write metrics", err)
		}
	}

	if summary {
		for i := range reports {
			reports[i].Results = nil
		}
	}
	printJSON(cmd, reports)
}

// replayFiles replays every file as its own session, at most parallel at a
// time. Reports are returned in argument order.
func replayFiles(ctx context.Context, p *pipeline.Pipeline, m *pipeline.Manager, paths []string, parallel int) ([]ReplayReport, error) {
	if parallel <= 0 {
		parallel = 1
	}
	reports := make([]ReplayReport, len(paths))
	ids := sessionIDs(paths)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			r, err := replayFile(ctx, p, m, path, ids[i])
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func replayFile(ctx context.Context, p *pipeline.Pipeline, m *pipeline.Manager, path, id string) (ReplayReport, error) {
	turns, err := readTranscript(path)
	if err != nil {
		return ReplayReport{}, err
	}

	sess := m.Open(ctx, id)
	report := ReplayReport{File: path, Session: id, Actions: map[string]int{}}
	for _, t := range turns {
		res, err := p.Process(ctx, sess, t)
		if err != nil {
			return ReplayReport{}, err
		}
		action := string(res.Verdict.RecommendedAction)
		if res.Fallback {
			action = "fallback"
		}
		report.Actions[action]++
		report.Turns++
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func readTranscript(path string) ([]pipeline.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var turns []pipeline.Turn
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var t pipeline.Turn
		if err := json.Unmarshal([]byte(text), &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if t.Candidate == "" {
			return nil, fmt.Errorf("line %d: missing candidate", line)
		}
		turns = append(turns, t)
	}
	return turns, sc.Err()
}

// sessionIDFor names a transcript's session after its file name.
func sessionIDFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sessionIDs names each transcript's session. Files sharing a name fall back
// to their cleaned path, and a file given more than once gets a numbered
// suffix, so no two transcripts share a session.
func sessionIDs(paths []string) []string {
	names := map[string]int{}
	for _, path := range paths {
		names[sessionIDFor(path)]++
	}

	ids := make([]string, len(paths))
	seen := map[string]int{}
	for i, path := range paths {
		id := sessionIDFor(path)
		if names[id] > 1 {
			clean := filepath.ToSlash(filepath.Clean(path))
			id = strings.TrimSuffix(clean, filepath.Ext(clean))
		}
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s#%d", id, n)
		}
		ids[i] = id
	}
	return ids
}
