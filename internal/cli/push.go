package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/sync"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Pack asset sources and upload them to the release",
	Long: `Pack every asset source directory into a deterministic archive and upload
it as <asset>.zip to the release named by the manifest version. The release
is created when it does not exist.

Assets already present in the release are skipped unless --force is given.
Sources that do not exist are skipped with a warning.

Examples:
  # Upload new assets
  gda push

  # Pack only, to check excludes and archive errors
  gda push --dry-run

  # Replace assets that already exist in the release
  gda push --force`,
	Args: cobra.NoArgs,
	RunE: runPush,
}

var (
	pushForce  bool
	pushDryRun bool
)

func init() {
	pushCmd.Flags().BoolVarP(&pushForce, "force", "f", false, "Replace assets that already exist in the release")
	pushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "Pack archives without uploading")
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	syncer, paths, err := newSyncer(ctx, !pushDryRun)
	if err != nil {
		return err
	}

	result, err := syncer.Push(ctx, &sync.PushRequest{
		Paths:     paths,
		Overwrite: pushForce,
		DryRun:    pushDryRun,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	if result.DryRun {
		PrintInfo("Dry run - nothing uploaded")
		PrintInfo("")
	}
	if result.ReleaseCreated {
		PrintSuccess(fmt.Sprintf("Created release %s", result.Version))
	}

	uploaded := 0
	for _, asset := range result.Assets {
		switch {
		case asset.Uploaded && asset.Replaced:
			PrintSuccess(fmt.Sprintf("Replaced %s (%s)", asset.ArtifactName, hash.Short(asset.SHA256)))
			uploaded++
		case asset.Uploaded:
			PrintSuccess(fmt.Sprintf("Uploaded %s (%s)", asset.ArtifactName, hash.Short(asset.SHA256)))
			uploaded++
		case asset.SkipReason != "":
			PrintWarning(fmt.Sprintf("Skipped %s: %s", asset.Name, asset.SkipReason))
		default:
			PrintInfo(fmt.Sprintf("Packed %s (%s, %d bytes)", asset.ArtifactName, hash.Short(asset.SHA256), asset.Size))
		}
	}

	if !result.DryRun {
		PrintLabelValue("Repository", result.Repository)
		PrintLabelValue("Release", result.Version)
		PrintSuccess(fmt.Sprintf("Pushed %s in %s", PrintCount(uploaded, "asset", "assets"), result.Duration.Round(timeDisplayUnit)))
	}
	return nil
}
