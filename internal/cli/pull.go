package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gda/internal/sync"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Make asset destinations match gda.lock",
	Long: `Download, verify and extract every locked asset into its destination.

A missing lockfile, or one resolved for another version, is re-resolved
first. Assets whose destination already holds every locked file are left
alone. Files in a destination that the asset did not produce are removed
unless --no-prune is given.

Examples:
  # Pull everything that is out of date
  gda pull

  # Download and extract every asset again
  gda pull --force

  # Keep untracked files in destinations
  gda pull --no-prune`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

var (
	pullForce   bool
	pullNoPrune bool
	pullStrict  bool
)

func init() {
	pullCmd.Flags().BoolVarP(&pullForce, "force", "f", false, "Download even when the destination is up to date")
	pullCmd.Flags().BoolVar(&pullNoPrune, "no-prune", false, "Do not remove untracked files")
	pullCmd.Flags().BoolVar(&pullStrict, "strict", false, "Fail instead of skipping missing assets")
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	syncer, paths, err := newSyncer(ctx, true)
	if err != nil {
		return err
	}

	result, err := syncer.Pull(ctx, &sync.PullRequest{
		Paths:   paths,
		Force:   pullForce,
		NoPrune: pullNoPrune,
		Strict:  pullStrict,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	if result.Resolved {
		PrintDim(fmt.Sprintf("Resolved release metadata (%s)", result.ResolveReason))
		for _, name := range result.ResolveSkipped {
			PrintWarning(fmt.Sprintf("Skipped %s: not found in release", name))
		}
	}

	for _, asset := range result.Assets {
		switch {
		case asset.Skipped:
			PrintWarning(fmt.Sprintf("Skipped %s: not in manifest", asset.Name))
		case asset.UpToDate:
			PrintDim(fmt.Sprintf("%s (up to date)", asset.Name))
		default:
			PrintSuccess(fmt.Sprintf("%s (%s)", asset.Name, PrintCount(len(asset.Files), "file", "files")))
		}
		if len(asset.Pruned) > 0 {
			PrintDim(fmt.Sprintf("pruned %s from %s", PrintCount(len(asset.Pruned), "file", "files"), asset.Name))
		}
	}

	if result.LockUpdated {
		PrintDim("Updated lockfile")
	}
	PrintSuccess(fmt.Sprintf("Pull complete in %s", result.Duration.Round(timeDisplayUnit)))
	return nil
}
