package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gda/internal/config"
	"github.com/danieljhkim/gda/internal/fsops"
	"github.com/danieljhkim/gda/internal/manifest"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter gda.yml",
	Long: `Create a starter gda.yml and add the .gda/ scratch directory to .gitignore.

An existing manifest is left alone unless --yes is given.

Examples:
  # Start a project backed by a GitHub repository
  gda init --repository acme/datasets --version v0.1.0

  # Replace an existing manifest
  gda init -r acme/datasets --yes`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	initRepository string
	initVersion    string
	initYes        bool
)

func init() {
	initCmd.Flags().StringVarP(&initRepository, "repository", "r", "", "Release repository (owner/repo, or bucket[/prefix] for s3)")
	initCmd.Flags().StringVar(&initVersion, "version", "0.1.0", "Initial release version")
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Overwrite an existing manifest")
	_ = initCmd.MarkFlagRequired("repository")
}

type initResult struct {
	Manifest         string
	ManifestWritten  bool
	GitignoreUpdated bool
}

func runInit(cmd *cobra.Command, args []string) error {
	paths, err := projectPaths()
	if err != nil {
		return err
	}
	fs := fsops.NewRealFS()

	written, err := manifest.WriteTemplate(fs, paths.Manifest, initRepository, initVersion, initYes)
	if err != nil {
		return err
	}
	result := initResult{Manifest: paths.Manifest, ManifestWritten: written}
	if written {
		result.GitignoreUpdated, err = config.EnsureGitignore(fs, paths.Workdir)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return outputJSON(result)
	}

	if !written {
		PrintWarning(fmt.Sprintf("%s already exists, skipped (use --yes to overwrite)", paths.Manifest))
		return nil
	}
	PrintSuccess(fmt.Sprintf("Wrote %s", paths.Manifest))
	if result.GitignoreUpdated {
		PrintSuccess("Updated .gitignore")
	} else {
		PrintDim(".gitignore already contains .gda/")
	}
	return nil
}
