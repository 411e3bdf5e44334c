package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"calfscrape/lib/browser"
	"calfscrape/lib/configutil"
	"calfscrape/lib/osutil"
	"calfscrape/lib/scrapers/calf"
	"calfscrape/lib/telemetry"
	"calfscrape/services/portalreport"

	"github.com/spf13/cobra"
)

type Config struct {
	Identity calf.Identity `json:"identity"`
	// PortalUrl overrides the production portal entry point.
	PortalUrl string `json:"portal_url"`
	// ProfileDir persists the browser profile between runs; keeping it
	// around is what lets the captcha auto-clear on repeat logins.
	ProfileDir string `json:"profile_dir"`
	// DebugDir receives screenshots and page snapshots on failures.
	DebugDir string `json:"debug_dir"`
	// OutputDir receives the CSV (and archive db unless overridden).
	OutputDir string `json:"output_dir"`
	// ArchiveDb is the sqlite path for the run archive; empty disables
	// archiving.
	ArchiveDb string               `json:"archive_db"`
	Challenge calf.ChallengeConfig `json:"challenge"`
}

var (
	configPath string
	headless   bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "calf-scraper",
	Short:         "calf-scraper pulls account and invoice data from the CALF customer portal.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "calfscrape.json5", "path to the run configuration")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window (image challenges cannot be assisted)")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON instead of tables")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		printArtifactHint(err)
		os.Exit(1)
	}
}

func run() error {
	ctx := osutil.SignalContext()

	config, err := configutil.Read[Config](configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if config.ProfileDir == "" {
		config.ProfileDir = ".calf-profile"
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}

	t, err := telemetry.SetupFromEnv(ctx, "calf-scraper")
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	b, err := browser.Open(browser.Options{
		Headless:   headless,
		ProfileDir: config.ProfileDir,
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer b.Close()

	client := calf.NewClient(calf.ClientOptions{
		BaseUrl:   config.PortalUrl,
		Browser:   b,
		DebugDir:  config.DebugDir,
		Challenge: config.Challenge,
	})

	session, err := client.Login(ctx, config.Identity)
	if err != nil {
		return err
	}

	accounts, err := session.ListAccounts(ctx)
	if err != nil {
		return err
	}

	// account-level failures are noted in the report, never fatal
	details, failures := portalreport.Collect(ctx, accounts, session.FetchDetail)

	report := portalreport.Build(ctx, session.Person, accounts, details, failures)

	if jsonOutput {
		if err := portalreport.WriteJSON(os.Stdout, report); err != nil {
			return err
		}
	} else {
		portalreport.WriteConsole(os.Stdout, report)
	}

	if err := writeCSVFile(ctx, config, report); err != nil {
		return err
	}
	if config.ArchiveDb != "" {
		if err := archiveRun(ctx, config, report); err != nil {
			slog.WarnContext(ctx, "failed to archive run", "err", err)
		}
	}
	return nil
}

// the CSV is written even when stdout already carried the report, it is
// the artifact downstream spreadsheets import
func writeCSVFile(ctx context.Context, config Config, report portalreport.Report) error {
	if err := osutil.EnsureDir(config.OutputDir); err != nil {
		return err
	}
	path := filepath.Join(config.OutputDir, portalreport.CSVFileName(config.Identity))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := portalreport.WriteCSV(f, report); err != nil {
		return err
	}
	slog.InfoContext(ctx, "wrote csv report", "path", path)
	return nil
}

func archiveRun(ctx context.Context, config Config, report portalreport.Report) error {
	store, err := portalreport.OpenStore(ctx, config.ArchiveDb)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, config.Identity, report)
}

// printArtifactHint surfaces the artifact path of a failed navigation so
// the operator can look at what the browser saw.
func printArtifactHint(err error) {
	var nav *calf.NavigationError
	if errors.As(err, &nav) && nav.ArtifactPath != "" {
		fmt.Fprintf(os.Stderr, "debug artifacts: %s.{png,html}\n", nav.ArtifactPath)
	}
	var timeout *calf.ChallengeTimeoutError
	if errors.As(err, &timeout) && timeout.ArtifactPath != "" {
		fmt.Fprintf(os.Stderr, "debug artifacts: %s.{png,html}\n", timeout.ArtifactPath)
	}
}
