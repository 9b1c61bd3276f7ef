package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phenix995/ai-instagram-organizer/internal/config"
	"github.com/phenix995/ai-instagram-organizer/internal/dedupe"
	"github.com/phenix995/ai-instagram-organizer/internal/fingerprint"
	"github.com/phenix995/ai-instagram-organizer/internal/logging"
	"github.com/phenix995/ai-instagram-organizer/internal/photo"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [source-folder]",
	Short: "Fingerprint a folder and show duplicate clusters",
	Long: `Inspect fingerprints every photo in a folder and groups
near-duplicates by Hamming distance, without calling any AI provider.
Useful for tuning the dedupe threshold before an organize run.

Examples:
  # Show duplicate clusters in a folder
  instagram-organizer inspect ~/Photos/vacation

  # Try a stricter threshold and include unique photos
  instagram-organizer inspect ~/Photos/vacation --threshold 3 --all

  # Machine-readable output
  instagram-organizer inspect ~/Photos/vacation --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Int("threshold", -1, "Max Hamming distance for duplicates (-1 = config value)")
	inspectCmd.Flags().Int("workers", 0, "Number of parallel fingerprint workers (0 = config value)")
	inspectCmd.Flags().Bool("all", false, "Include clusters with a single photo")
	inspectCmd.Flags().Bool("json", false, "Output results as JSON")
}

type inspectPhoto struct {
	Path     string `json:"path"`
	Size     int64  `json:"size_bytes"`
	PHash    string `json:"phash,omitempty"`
	DHash    string `json:"dhash,omitempty"`
	Distance int    `json:"distance"`
	Error    string `json:"error,omitempty"`
}

type inspectCluster struct {
	Representative string         `json:"representative"`
	Photos         []inspectPhoto `json:"photos"`
}

type inspectOutput struct {
	Folder    string           `json:"folder"`
	Threshold int              `json:"threshold"`
	Stats     dedupe.Stats     `json:"stats"`
	Clusters  []inspectCluster `json:"clusters"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	folder := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if threshold := mustGetInt(cmd, "threshold"); threshold >= 0 {
		cfg.Dedupe.Threshold = threshold
	}
	if workers := mustGetInt(cmd, "workers"); workers > 0 {
		cfg.Dedupe.Workers = workers
	}
	showAll := mustGetBool(cmd, "all")
	jsonOutput := mustGetBool(cmd, "json")

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}

	scan, err := photo.Scan(folder)
	if err != nil {
		return err
	}
	if len(scan.Photos) == 0 {
		return fmt.Errorf("no supported photos found in %s", folder)
	}

	d := dedupe.New(logger, dedupe.Config{
		Threshold: cfg.Dedupe.Threshold,
		Workers:   cfg.Dedupe.Workers,
		Prefilter: cfg.Dedupe.Prefilter,
	})
	hashed := d.Hash(context.Background(), scan.Photos)
	result := d.BuildClusters(hashed)

	out := buildInspectOutput(folder, cfg.Dedupe.Threshold, hashed, result)
	if !showAll {
		var dupes []inspectCluster
		for _, c := range out.Clusters {
			if len(c.Photos) > 1 {
				dupes = append(dupes, c)
			}
		}
		out.Clusters = dupes
	}

	if jsonOutput {
		return outputJSON(out)
	}
	printInspectTable(out)
	return nil
}

func buildInspectOutput(folder string, threshold int, hashed []dedupe.Hashed, result dedupe.Result) inspectOutput {
	byID := map[string]dedupe.Hashed{}
	for _, h := range hashed {
		byID[h.Photo.ID] = h
	}

	out := inspectOutput{
		Folder:    folder,
		Threshold: threshold,
		Stats:     result.Stats,
		Clusters:  make([]inspectCluster, 0, len(result.Clusters)),
	}
	for _, cluster := range result.Clusters {
		seed := byID[cluster.Representative.ID]
		ic := inspectCluster{
			Representative: displayPath(folder, cluster.Representative.Path),
			Photos:         make([]inspectPhoto, 0, len(cluster.Members)),
		}
		for _, member := range cluster.Members {
			h := byID[member.ID]
			ip := inspectPhoto{
				Path: displayPath(folder, member.Path),
				Size: member.Size,
			}
			if h.Err != nil {
				ip.Error = h.Err.Error()
			} else {
				ip.PHash = h.Fingerprint.Hex()
				ip.DHash = h.Fingerprint.DifferenceHex()
				ip.Distance = fingerprint.Distance(seed.Fingerprint.Perceptual, h.Fingerprint.Perceptual)
			}
			ic.Photos = append(ic.Photos, ip)
		}
		out.Clusters = append(out.Clusters, ic)
	}
	return out
}

func printInspectTable(out inspectOutput) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER\tPHOTO\tSIZE\tPHASH\tDIST")
	fmt.Fprintln(w, "-------\t-----\t----\t-----\t----")

	for i, cluster := range out.Clusters {
		for _, p := range cluster.Photos {
			phash := p.PHash
			dist := fmt.Sprintf("%d", p.Distance)
			if p.Error != "" {
				phash = "unreadable"
				dist = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", i+1, p.Path, p.Size, phash, dist)
		}
	}

	w.Flush()
	fmt.Printf("\nTotal: %d photos in %d clusters (%d duplicates, %d unreadable)\n",
		out.Stats.Input, out.Stats.Clusters, out.Stats.Duplicates, out.Stats.DecodeFailures)
}

func displayPath(folder, path string) string {
	if rel, err := filepath.Rel(folder, path); err == nil {
		return rel
	}
	return path
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
