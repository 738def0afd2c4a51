// Package main is the entrypoint for the courier CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Import modules to register them
	_ "github.com/eugenetaranov/courier/internal/module/files"
	_ "github.com/eugenetaranov/courier/internal/module/remote"

	"github.com/eugenetaranov/courier/internal/executor"
	"github.com/eugenetaranov/courier/internal/module"
	"github.com/eugenetaranov/courier/internal/transfer"
	"github.com/eugenetaranov/courier/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug    bool
	dryRun   bool
	noColor  bool
	envFiles []string
	tempDir  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier - file transfer workflows",
	Long: `Courier runs YAML workflows whose tasks list, upload, download and
delete files on remote hosts.

Supports SFTP (password or key authentication), FTP, FTPS and local
directories.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output with detailed task information")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Resolve tasks without transferring any files")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Load environment variables from a .env file (repeatable)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "Root folder for downloads (overrides the workflow's temp_dir)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pluginsCmd)
}

// runCmd executes a workflow
var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow",
	Long: `Execute the tasks of a workflow in order.

A .env file next to the workflow is loaded automatically. Variables
already set in the environment are never overridden.

Examples:
  courier run nightly.yaml
  courier run nightly.yaml --debug
  courier run nightly.yaml --env-file secrets.env --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	workflowPath := args[0]

	// Check if file exists
	if _, err := os.Stat(workflowPath); os.IsNotExist(err) {
		return fmt.Errorf("workflow not found: %s", workflowPath)
	}

	if err := loadEnv(workflowPath, envFiles); err != nil {
		return err
	}

	wf, err := workflow.ParseFile(workflowPath)
	if err != nil {
		return fmt.Errorf("failed to parse workflow: %w", err)
	}

	// Create executor
	exec := executor.New()
	exec.Debug = debug
	exec.DryRun = dryRun
	exec.TempRoot = tempDir
	exec.Output.SetColor(!noColor)
	exec.Output.SetDebug(debug)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, stopping after the current transfer...")
		cancel()
	}()

	result, err := exec.Run(ctx, wf)
	if err != nil {
		return err
	}

	if !result.Success {
		os.Exit(1)
	}

	return nil
}

// loadEnv loads the explicit env files, then a .env next to the workflow
// if one exists.
func loadEnv(workflowPath string, files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	local := filepath.Join(filepath.Dir(workflowPath), ".env")
	if err := godotenv.Load(local); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", local, err)
	}

	return nil
}

// validateCmd validates a workflow without running it
var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml> [workflow2.yaml ...]",
	Short: "Validate one or more workflows",
	Long: `Parse and validate workflows without executing them.

This checks for:
  - Valid YAML syntax
  - Required fields (name, tasks)
  - Valid module names, one per task
  - Unique task ids and backward-only select_files

Examples:
  courier validate nightly.yaml
  courier validate workflows/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateWorkflows,
}

func validateWorkflows(cmd *cobra.Command, args []string) error {
	var hasErrors bool

	for _, workflowPath := range args {
		if err := validateWorkflow(workflowPath); err != nil {
			fmt.Printf("FAIL: %s - %v\n", workflowPath, err)
			hasErrors = true
		} else {
			fmt.Printf("OK: %s\n", workflowPath)
		}
	}

	if hasErrors {
		return fmt.Errorf("one or more workflows failed validation")
	}

	fmt.Printf("\nAll %d workflow(s) valid.\n", len(args))
	return nil
}

func validateWorkflow(workflowPath string) error {
	if _, err := os.Stat(workflowPath); os.IsNotExist(err) {
		return fmt.Errorf("not found")
	}

	_, err := workflow.ParseFile(workflowPath)
	return err
}

// pluginsCmd lists transfer protocols and modules
var pluginsCmd = &cobra.Command{
	Use:     "plugins",
	Aliases: []string{"modules"},
	Short:   "List available transfer plugins and modules",
	Long:    `Display the transfer protocols and task modules that can be used in workflows.`,
	Run: func(cmd *cobra.Command, args []string) {
		protocols := transfer.Protocols()
		fmt.Println("Transfer plugins:")
		fmt.Println()
		for _, name := range protocols {
			fmt.Printf("  - %s\n", name)
		}

		modules := module.List()
		fmt.Println()
		fmt.Println("Modules:")
		fmt.Println()
		for _, name := range modules {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Println()
		fmt.Printf("Total: %d plugins, %d modules\n", len(protocols), len(modules))
	},
}
