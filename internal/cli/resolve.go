package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/sync"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Pin the manifest's release assets in gda.lock",
	Long: `Look up every manifest asset in the release named by the manifest version
and record its download URL and SHA-256 in gda.lock.

Assets missing from the release are skipped with a warning unless --strict
is given. The lockfile is only written when every lookup succeeds.

Examples:
  gda resolve
  gda resolve --strict -m assets/gda.yml`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

var resolveStrict bool

func init() {
	resolveCmd.Flags().BoolVar(&resolveStrict, "strict", false, "Fail when an asset is missing from the release")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	syncer, paths, err := newSyncer(ctx, true)
	if err != nil {
		return err
	}

	result, err := syncer.ResolveAndSave(ctx, &sync.ResolveRequest{
		Paths:  paths,
		Strict: resolveStrict,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	for _, name := range result.Skipped {
		PrintWarning(fmt.Sprintf("Skipped %s: not found in release", name))
	}
	rows := make([][]string, 0, len(result.Lock.Assets))
	for _, asset := range result.Lock.Assets {
		rows = append(rows, []string{asset.Name, hash.Short(asset.SHA256)})
	}
	PrintTable([]string{"ASSET", "SHA256"}, rows)
	PrintSuccess(fmt.Sprintf("Resolved %s for %s", PrintCount(len(result.Lock.Assets), "asset", "assets"), result.Lock.Version))
	return nil
}
