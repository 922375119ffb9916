// SPDX-License-Identifier: Apache-2.0

// rdharmony runs the boundary matching and coverage engine over YAML
// datasets, either as a one-shot batch (run) or as an MCP tool server
// for interactive research clients (serve).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rdhproj/rdharmony/internal/assign"
	"github.com/rdhproj/rdharmony/internal/config"
	"github.com/rdhproj/rdharmony/internal/coverage"
	"github.com/rdhproj/rdharmony/internal/pipeline"
	"github.com/rdhproj/rdharmony/internal/tool"
	"github.com/rdhproj/rdharmony/internal/validate"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rdharmony",
		Short:         "Harmonize administrative boundaries and assign cause-of-death distributions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		dataPath   string
		outPath    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline over a dataset and write the output tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipe, ds, err := buildPipeline(configPath, dataPath)
			if err != nil {
				return err
			}
			res, err := pipe.Run(cmd.Context(), ds.Membership, ds.Individuals)
			if err != nil {
				return err
			}
			return writeOutput(outPath, res)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (defaults apply when omitted)")
	cmd.Flags().StringVar(&dataPath, "data", "", "path to the YAML dataset")
	cmd.Flags().StringVar(&outPath, "out", "-", "output path for the YAML tables ('-' for stdout)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		dataPath   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline once, then serve its tables as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipe, ds, err := buildPipeline(configPath, dataPath)
			if err != nil {
				return err
			}
			res, err := pipe.Run(cmd.Context(), ds.Membership, ds.Individuals)
			if err != nil {
				return err
			}
			svc := tool.NewService(pipe, res)

			server := mcp.NewServer(&mcp.Implementation{Name: "rdharmony", Version: version}, nil)
			mcp.AddTool(server, tool.MetadataNormalizeName, svc.NormalizeName)
			mcp.AddTool(server, tool.MetadataMatchMembership, svc.MatchMembership)
			mcp.AddTool(server, tool.MetadataDistrictCoverage, svc.DistrictCoverage)
			mcp.AddTool(server, tool.MetadataAssignCauses, svc.AssignCauses)
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (defaults apply when omitted)")
	cmd.Flags().StringVar(&dataPath, "data", "", "path to the YAML dataset")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// buildPipeline loads config and dataset and constructs the pipeline.
func buildPipeline(configPath, dataPath string) (*pipeline.Pipeline, *dataset, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
	}
	ds, err := loadDataset(dataPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	pipe, err := pipeline.New(cfg, ds.Units, ds.Officials, ds.GroupStats, logger)
	if err != nil {
		return nil, nil, err
	}
	return pipe, ds, nil
}

// runOutput is the serialized form of the three output tables.
type runOutput struct {
	RunID       string                `yaml:"run_id"`
	Coverage    []coverage.Record     `yaml:"coverage"`
	Diagnostics []validate.Diagnostic `yaml:"diagnostics"`
	Assignments []assign.Assignment   `yaml:"assignments"`
	Outcomes    map[string]int        `yaml:"outcomes"`
}

func writeOutput(path string, res *pipeline.Result) error {
	outcomes := make(map[string]int, len(res.Outcomes))
	for k, v := range res.Outcomes {
		outcomes[string(k)] = v
	}
	data, err := yaml.Marshal(runOutput{
		RunID:       res.RunID.String(),
		Coverage:    res.Coverage,
		Diagnostics: res.Diagnostics,
		Assignments: res.Assignments,
		Outcomes:    outcomes,
	})
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
