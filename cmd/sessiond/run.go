// cmd/sessiond/run.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run <model>",
	Short: "Run the model once on a JSON feed",
	Long: `Runs the model on the tensors in the --feed file and prints the outputs as JSON.
The feed file maps input names to tensors: {"x": {"type": "float32", "shape": [1, 2], "data": [0.1, 0.2]}}.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedFile, _ := cmd.Flags().GetString("feed")
		outputNames, _ := cmd.Flags().GetStringSlice("output")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		factory, err := engineFactory(cfg)
		if err != nil {
			return err
		}

		feed, err := readFeed(feedFile)
		if err != nil {
			return err
		}

		s, err := session.New(session.Path(args[0]), &cfg.Session, factory)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		defer s.Close()

		if len(outputNames) == 0 {
			outputNames = s.OutputNames()
		}
		results, err := s.Run(outputNames, feed, nil)
		if err != nil {
			return err
		}

		out := make(map[string]*engine.Tensor, len(results))
		for i, name := range outputNames {
			out[name] = results[i]
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func readFeed(path string) (engine.Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	var feed engine.Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", path, err)
	}
	return feed, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("feed", "", "JSON file mapping input names to tensors")
	runCmd.Flags().StringSlice("output", nil, "Output to return (repeatable, default all)")
	runCmd.MarkFlagRequired("feed")
}
