package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tfload/tfload/internal/loader"
	"github.com/tfload/tfload/internal/varresolve"
	"github.com/tfload/tfload/pkg/log"
)

var (
	parseOutputFile string
	parseVarFiles   []string
)

var parseCmd = &cobra.Command{
	Use:   "parse [dir]",
	Short: "Parse and expand a Terraform configuration tree",
	Long: `Parse walks a directory, parses every .tf/.tf.json file into a normalized
definition tree, resolves variables across the full precedence chain, and
recursively expands module calls into their resolved content.

The result (normalized definitions, a parsing-errors summary, and the module
dependency map) is written as JSON to stdout, or to --out.

Examples:
  # Parse the working directory
  tfload parse .

  # Parse with extra var-files, nested module addressing, and external
  # module fetching enabled
  tfload parse . --var-file extra.tfvars --nested-modules --download-external-modules`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseOutputFile, "out", "o", "", "output file (default: stdout)")
	parseCmd.Flags().StringArrayVar(&parseVarFiles, "var-file", nil, "additional .tfvars file to apply (repeatable)")
}

// parseOutput is the JSON shape written to stdout or --out: the normalized
// definitions, one entry per file that failed to parse, the per-directory
// winning variable bindings, and the module dependency map, all keyed the
// same way internal/loader.Result keys them.
type parseOutput struct {
	Definitions         map[string]map[string][]any               `json:"definitions"`
	ParsingErrors       map[string]string                         `json:"parsing_errors,omitempty"`
	EvalContext         map[string]map[string]varresolve.Binding `json:"eval_context,omitempty"`
	ModuleDependencyMap map[string][][]string                     `json:"module_dependency_map,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	root := workDir
	if len(args) == 1 {
		root = args[0]
	} else if cfg.Root != "" {
		root = cfg.Root
	}

	envVars := make(map[string]string)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok {
			envVars[name] = value
		}
	}

	// Var-files are applied only in the directory they live in, which is
	// compared as an absolute path
	varFiles := append(append([]string{}, cfg.VarFiles...), parseVarFiles...)
	for i, f := range varFiles {
		if abs, err := filepath.Abs(f); err == nil {
			varFiles[i] = abs
		}
	}

	opts := loader.ParseOptions{
		RootDir:                     root,
		EnvVars:                     envVars,
		NestedModules:               cfg.NestedModules,
		IgnoreHiddenDirs:            cfg.IgnoreHiddenDirs,
		DownloadExternalModules:     cfg.DownloadExternalModules,
		ExternalModulesDownloadPath: cfg.ExternalModulesDir,
		ExcludedPaths:               cfg.Exclude,
		VarFiles:                    varFiles,
	}

	log.WithField("dir", root).Info("parsing configuration tree")

	result, err := loader.New().ParseDirectory(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	if len(result.ParsingErrors) > 0 {
		log.WithField("count", strconv.Itoa(len(result.ParsingErrors))).Warn("some files failed to parse")
	}

	out := parseOutput{
		Definitions:         make(map[string]map[string][]any, len(result.Definitions)),
		EvalContext:         result.EvalContext,
		ModuleDependencyMap: result.ModuleDependencyMap,
	}
	for key, payload := range result.Definitions {
		out.Definitions[key] = map[string][]any(payload)
	}
	if len(result.ParsingErrors) > 0 {
		out.ParsingErrors = make(map[string]string, len(result.ParsingErrors))
		for file, e := range result.ParsingErrors {
			out.ParsingErrors[file] = e.Error()
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if parseOutputFile != "" {
		if err := os.WriteFile(parseOutputFile, encoded, 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.WithField("file", parseOutputFile).Info("result written")
		return nil
	}

	fmt.Println(string(encoded))
	return summarize(result)
}

// summarize returns a non-nil error only when every directory failed to
// parse, matching ParseDirectory's own contract that a root-level walk
// failure is the only hard error; individual file faults stay informational.
func summarize(result *loader.Result) error {
	if len(result.Definitions) == 0 && len(result.ParsingErrors) > 0 {
		keys := make([]string, 0, len(result.ParsingErrors))
		for k := range result.ParsingErrors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("no definitions produced, %d file(s) failed to parse (first: %s)", len(keys), keys[0])
	}
	return nil
}
