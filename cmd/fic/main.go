package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	fileintegrity "github.com/mattkeenan/fileintegrity/pkg"
	"github.com/spf13/cobra"
)

// Process exit codes
const (
	exitOK    = 0
	exitError = 1 // fatal error, including a missing or unreadable manifest
	exitDrift = 2
)

// options holds flags shared by init and verify
type options struct {
	ignore      []string
	ignoreFile  string
	configPath  string
	writeConfig bool
	algorithm   string
	workers     int
	symlinks    string
	format      string
	verbose     int
	debug       string
	logJSON     bool
}

func main() {
	shutdown := setupSignalHandler()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, shutdown))
}

// run executes the command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer, shutdown <-chan struct{}) int {
	exitCode := exitOK
	root := newRootCmd(stdout, stderr, shutdown, &exitCode)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "fic: %v\n", err)
		return exitError
	}
	return exitCode
}

// newRootCmd builds the fic command tree. Subcommands record their exit
// status in exitCode; drift is a status, not an error.
func newRootCmd(stdout, stderr io.Writer, shutdown <-chan struct{}, exitCode *int) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "fic",
		Short:         "File integrity checker for directory trees",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringArrayVar(&opts.ignore, "ignore", nil, "Relative paths to ignore (case-insensitive, exact match)")
	flags.StringVar(&opts.ignoreFile, "ignore-file", "", "File listing relative paths to ignore, one per line")
	flags.StringVar(&opts.configPath, "config", "", "Path to an ini configuration file")
	flags.BoolVar(&opts.writeConfig, "write-config", false, "Save the effective settings to the --config file")
	flags.IntVar(&opts.workers, "workers", 0, "Number of concurrent hash workers")
	flags.StringVar(&opts.symlinks, "symlinks", "", "Symlink handling: none, contained, all")
	flags.StringVar(&opts.format, "format", "", "Report format: human, json, yaml")
	flags.CountVarP(&opts.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	flags.StringVar(&opts.debug, "debug", "", "Comma-separated debug flags (scan, hash, verify)")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Write log records to stderr as JSON")

	initCmd := &cobra.Command{
		Use:   "init <folder> <manifest>",
		Short: "Create baseline manifest",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, ignore, _, err := prepare(cmd, opts, args, stderr, shutdown)
			if err != nil {
				return err
			}

			manifest, err := builder.InitManifest(args[0], args[1], ignore)
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "Baseline saved: %s (%d files)\n", args[1], len(manifest.Files))
			*exitCode = exitOK
			return nil
		},
	}
	initCmd.Flags().StringVar(&opts.algorithm, "algorithm", "", "Hash algorithm: SHA-256, SHA-512, SHA-1, BLAKE3")

	verifyCmd := &cobra.Command{
		Use:   "verify <folder> <manifest>",
		Short: "Verify folder against manifest",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, ignore, format, err := prepare(cmd, opts, args, stderr, shutdown)
			if err != nil {
				return err
			}

			report, err := builder.VerifyManifest(args[0], args[1], ignore)
			switch {
			case errors.Is(err, fileintegrity.ErrManifestNotFound):
				fmt.Fprintln(stdout, "Manifest not found. Run 'init' first.")
				*exitCode = exitError
				return nil
			case errors.Is(err, fileintegrity.ErrManifestParse):
				fmt.Fprintf(stdout, "Manifest unreadable: %v\n", err)
				*exitCode = exitError
				return nil
			case err != nil:
				return err
			}

			if err := fileintegrity.WriteReport(stdout, report, format); err != nil {
				return err
			}

			if report.IsClean() {
				*exitCode = exitOK
			} else {
				*exitCode = exitDrift
			}
			return nil
		},
	}

	root.AddCommand(initCmd, verifyCmd)
	return root
}

// prepare applies logging settings and builds the builder and ignore set.
// Command-line flags take precedence over the configuration file.
func prepare(cmd *cobra.Command, opts *options, args []string, stderr io.Writer, shutdown <-chan struct{}) (*fileintegrity.Builder, *fileintegrity.IgnoreSet, string, error) {
	cfg, err := fileintegrity.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, "", err
	}

	var overrides []string
	if opts.algorithm != "" {
		overrides = append(overrides, "default:"+opts.algorithm)
	}
	if opts.format != "" {
		overrides = append(overrides, "format:"+opts.format)
	}
	if opts.symlinks != "" {
		overrides = append(overrides, "mode:"+opts.symlinks)
	}
	if cmd.Flags().Changed("workers") {
		overrides = append(overrides, fmt.Sprintf("hash_workers:%d", opts.workers))
	}
	if opts.verbose > 0 {
		overrides = append(overrides, fmt.Sprintf("level:%d", min(opts.verbose, 3)))
	}
	if opts.debug != "" {
		overrides = append(overrides, "debug:"+opts.debug)
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return nil, nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, "", err
	}
	if opts.writeConfig {
		if err := cfg.Save(); err != nil {
			return nil, nil, "", fmt.Errorf("failed to write config: %w", err)
		}
	}

	all := cfg.GetAllConfig()
	fileintegrity.SetLogOutput(stderr, opts.logJSON)
	fileintegrity.SetVerboseLevel(all.Verbose.Level)
	fileintegrity.SetDebugFlags(all.Verbose.Debug)

	ignore, err := buildIgnoreSet(cmd, opts, args)
	if err != nil {
		return nil, nil, "", err
	}

	builder, err := fileintegrity.NewBuilderFromConfig(cfg, fileintegrity.WithShutdown(shutdown))
	if err != nil {
		return nil, nil, "", err
	}

	return builder, ignore, all.Output.Format, nil
}

// buildIgnoreSet collects --ignore values, the ignore file and any trailing
// positional arguments given after --ignore.
func buildIgnoreSet(cmd *cobra.Command, opts *options, args []string) (*fileintegrity.IgnoreSet, error) {
	extra := args[2:]
	if len(extra) > 0 && !cmd.Flags().Changed("ignore") {
		return nil, fmt.Errorf("unexpected arguments: %v", extra)
	}

	ignore := fileintegrity.NewIgnoreSet(opts.ignore...)
	for _, p := range extra {
		ignore.Add(p)
	}

	if opts.ignoreFile != "" {
		if err := ignore.LoadIgnoreFile(opts.ignoreFile); err != nil {
			return nil, err
		}
	}
	return ignore, nil
}
