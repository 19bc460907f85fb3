package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tfload/tfload/pkg/config"
	"github.com/tfload/tfload/pkg/log"
)

var (
	// Global flags
	cfgFile       string
	workDir       string
	logLevel      string
	nestedModules bool
	downloadMods  bool

	// Version info
	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	// Global config
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tfload",
	Short: "Load and expand Terraform configuration trees",
	Long: `tfload walks a directory of Terraform configuration, parses every .tf/.tf.json
file into a normalized definition tree, resolves variables across the precedence
chain (defaults, TF_VAR_ environment variables, tfvars files, CLI-supplied
var-files), and recursively expands module calls into their resolved content.

Features:
  - Schema-free HCL2 and JSON parsing into a generic block model
  - Variable resolution across the full precedence chain
  - Iterative module-call expansion with flat or nested addressing
  - Local, git, OCI, and registry module source fetching
  - Glob pattern filtering of directories during discovery`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Initialize logger
		log.Init()

		// Handle verbose flag (shorthand for --log-level=debug)
		if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
			logLevel = "debug"
		}

		// Set log level from flag
		if logLevel != "" {
			if err := log.SetLevelFromString(logLevel); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
		}

		// Show version info (skip for version command itself)
		if cmd.Name() != "version" && versionInfo.Version != "" {
			log.WithField("version", versionInfo.Version).Debug("tfload")
		}

		// Skip config loading for version, schema, and completion commands
		if cmd.Name() == "version" || cmd.Name() == "schema" || cmd.Name() == "completion" {
			return nil
		}

		// Load configuration
		log.Debug("loading configuration")
		var err error
		if cfgFile != "" {
			log.WithField("file", cfgFile).Debug("loading config from file")
			cfg, err = config.Load(cfgFile)
		} else {
			log.WithField("dir", workDir).Debug("loading config from directory")
			cfg, err = config.LoadOrDefault(workDir)
		}

		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cmd.Flags().Changed("nested-modules") {
			cfg.NestedModules = nestedModules
		}
		if cmd.Flags().Changed("download-external-modules") {
			cfg.DownloadExternalModules = downloadMods
		}

		log.Debug("validating configuration")
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Apply the config's log level unless a flag already chose one
		if cfg.LogLevel != "" && !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("verbose") {
			if err := log.SetLevelFromString(cfg.LogLevel); err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
			}
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets version information
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

func init() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: .tfload.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "d", cwd, "working directory")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&nestedModules, "nested-modules", "n", false, "resolve nested modules recursively instead of flattening")
	rootCmd.PersistentFlags().BoolVar(&downloadMods, "download-external-modules", false, "download git/registry/OCI module sources during resolution")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output (shorthand for --log-level=debug)")
}
