package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/response-guard/internal/patterns"
	"github.com/rcliao/response-guard/internal/similarity"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the detection rule table",
		Run:   runRules,
	}

	RootCmd.AddCommand(cmd)
}

func runRules(cmd *cobra.Command, args []string) {
	lib := newDetector(similarity.New(cfg.SimilarityOptions())).Library()
	printJSON(cmd, struct {
		Version string          `json:"version"`
		Rules   []patterns.Rule `json:"rules"`
	}{lib.Version(), lib.Rules()})
}
