// demesimctl runs Wright-Fisher simulations over demes-style demographic
// graphs and manages their stored results.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"demesim/internal/demograph"
	"demesim/internal/model"
	"demesim/internal/simconfig"
	"demesim/internal/storage"
	"demesim/pkg/demesim"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demesimctl",
		Short: "Backward-time Wright-Fisher simulation over demographic graphs",
		Long: `demesimctl simulates allele-frequency trajectories under drift,
selection, mutation and migration across the populations of a demes-style
demographic model, and stores each run for later inspection and export.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	cmd.PersistentFlags().String("db-path", "demesim.db", "sqlite database path")

	cmd.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newHistoryCmd(),
		newExportCmd(),
	)
	return cmd
}

func clientFromFlags(cmd *cobra.Command) (*demesim.Client, error) {
	storeKind, _ := cmd.Flags().GetString("store")
	dbPath, _ := cmd.Flags().GetString("db-path")
	return demesim.New(demesim.Options{StoreKind: storeKind, DBPath: dbPath})
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a demographic graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			graphPath, _ := cmd.Flags().GetString("graph")
			configPath, _ := cmd.Flags().GetString("config")
			runID, _ := cmd.Flags().GetString("run-id")
			ancestry, _ := cmd.Flags().GetString("ancestry")
			placement, _ := cmd.Flags().GetString("placement")

			request := demesim.RunRequest{
				GraphPath:        graphPath,
				ConfigPath:       configPath,
				RunID:            runID,
				AncestryPolicy:   ancestry,
				MigrantPlacement: placement,
				Logf: func(format string, fnArgs ...any) {
					fmt.Fprintf(os.Stderr, "warning: "+format+"\n", fnArgs...)
				},
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetInt64("seed")
				request.Seed = &seed
			}

			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), request)
			if err != nil {
				return err
			}

			fmt.Printf("run %s (seed %d, horizon %d)\n", summary.RunID, summary.Seed, summary.Horizon)
			for _, trajectory := range summary.Trajectories {
				fmt.Printf("  %s: born gen %d, %d records, final %s\n",
					trajectory.Population,
					trajectory.BirthGeneration,
					trajectory.Generations,
					formatFrequencies(trajectory.FinalFrequencies))
			}
			if len(summary.Warnings) > 0 {
				fmt.Printf("  %d warning(s)\n", len(summary.Warnings))
			}
			return nil
		},
	}

	cmd.Flags().String("graph", "", "demographic graph YAML (required)")
	cmd.Flags().String("config", "", "simulation config YAML")
	cmd.Flags().Int64("seed", 0, "random seed (overrides the config file)")
	cmd.Flags().String("run-id", "", "run identifier (generated when empty)")
	cmd.Flags().String("ancestry", "", "ancestry shortfall policy: fallback_to_primary|strict_proportional|fallback_to_uniform")
	cmd.Flags().String("placement", "", "migrant placement: overwrite_random|distinct_positions")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a graph and config without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			graphPath, _ := cmd.Flags().GetString("graph")
			configPath, _ := cmd.Flags().GetString("config")

			graph, err := demograph.Load(graphPath)
			if err != nil {
				return err
			}
			fmt.Printf("graph ok: %d deme(s), %d migration(s), %d pulse(s)\n",
				len(graph.Demes), len(graph.Migrations), len(graph.Pulses))

			if configPath != "" {
				cfg, err := simconfig.Load(configPath)
				if err != nil {
					return err
				}
				fmt.Printf("config ok: %d allele(s), %d scheduled introduction(s)\n",
					len(cfg.Alleles), len(cfg.NewAlleles))
			}
			return nil
		},
	}

	cmd.Flags().String("graph", "", "demographic graph YAML (required)")
	cmd.Flags().String("config", "", "simulation config YAML")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), demesim.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			for _, run := range runs {
				fmt.Printf("%s  %s  seed=%d horizon=%d populations=%d  %s\n",
					run.RunID, run.CreatedAtUTC, run.Seed, run.Horizon, run.Populations, run.GraphPath)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 0, "show only the most recent N runs")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a run's frequency trajectories",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			population, _ := cmd.Flags().GetString("population")
			tail, _ := cmd.Flags().GetInt("tail")

			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			histories, err := client.History(cmd.Context(), demesim.HistoryRequest{RunID: runID, Latest: latest})
			if err != nil {
				return err
			}
			for _, history := range histories {
				if population != "" && history.Population != population {
					continue
				}
				records := history.Records
				offset := 0
				if tail > 0 && len(records) > tail {
					offset = len(records) - tail
					records = records[offset:]
				}
				fmt.Printf("%s (born gen %d):\n", history.Population, history.BirthGeneration)
				for i, record := range records {
					generation := history.BirthGeneration - offset - i
					fmt.Printf("  gen %4d  %s\n", generation, formatFrequencies(record))
				}
			}
			return nil
		},
	}

	cmd.Flags().String("run-id", "", "run identifier")
	cmd.Flags().Bool("latest", false, "use the most recent run")
	cmd.Flags().String("population", "", "show only this population")
	cmd.Flags().Int("tail", 0, "show only the last N generations")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a run's history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			outDir, _ := cmd.Flags().GetString("out")

			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			export, err := client.Export(cmd.Context(), demesim.ExportRequest{
				RunID:  runID,
				Latest: latest,
				OutDir: outDir,
			})
			if err != nil {
				return err
			}
			fmt.Printf("exported run %s to %s\n", export.RunID, export.Path)
			return nil
		},
	}

	cmd.Flags().String("run-id", "", "run identifier")
	cmd.Flags().Bool("latest", false, "use the most recent run")
	cmd.Flags().String("out", "", "output directory (default exports/)")
	return cmd
}

func formatFrequencies(frequencies model.Frequencies) string {
	alleles := make([]model.Allele, 0, len(frequencies))
	for allele := range frequencies {
		alleles = append(alleles, allele)
	}
	sort.Slice(alleles, func(i, j int) bool { return alleles[i] < alleles[j] })

	parts := make([]string, 0, len(alleles))
	for _, allele := range alleles {
		parts = append(parts, fmt.Sprintf("%s=%.4f", allele, frequencies[allele]))
	}
	return strings.Join(parts, " ")
}
