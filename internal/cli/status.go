package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show manifest, lock and destination state",
	Long: `Report, for every manifest asset, whether it is locked and whether its
destination holds every locked file. Nothing is downloaded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		syncer, paths, err := newSyncer(ctx, false)
		if err != nil {
			return err
		}

		result, err := syncer.Status(ctx, &sync.StatusRequest{Paths: paths})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintLabelValue("Repository", result.Manifest.Repository)
		PrintLabelValue("Version", result.Manifest.Version)
		switch {
		case !result.LockFound:
			PrintLabelValue("Lockfile", "missing (run gda resolve or gda pull)")
		case result.LockStale:
			PrintLabelValue("Lockfile", fmt.Sprintf("stale (resolved for %s)", result.LockVersion))
		default:
			PrintLabelValue("Lockfile", "up to date")
		}

		PrintSection("Assets")
		rows := make([][]string, 0, len(result.Assets))
		for _, asset := range result.Assets {
			state := "not locked"
			if asset.Locked {
				state = "needs pull"
				if asset.Verified {
					state = "ok"
				}
			}
			rows = append(rows, []string{asset.Name, state, hash.Short(asset.SHA256), fmt.Sprint(asset.Files)})
		}
		PrintTable([]string{"ASSET", "STATE", "SHA256", "FILES"}, rows)

		if len(result.Orphans) > 0 {
			PrintInfo("")
			PrintWarning("Locked assets missing from the manifest:")
			PrintList(result.Orphans, 1)
		}
		for _, o := range result.Overlaps {
			PrintWarning(fmt.Sprintf("Destinations of %s and %s overlap", o.First, o.Second))
		}
		return nil
	},
}
