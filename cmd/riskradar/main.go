package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/riskradar/riskradar/internal/comment"
	"github.com/riskradar/riskradar/internal/config"
	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
	"github.com/riskradar/riskradar/internal/hydrator"
	"github.com/riskradar/riskradar/internal/llm"
	"github.com/riskradar/riskradar/internal/server"
	"github.com/riskradar/riskradar/internal/similarity"
	"github.com/riskradar/riskradar/internal/telemetry"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "riskradar",
	Short:   "Risk profiles for GitHub issues",
	Long:    "riskradar mines the pull requests and commits linked to GitHub issues, scores the blast radius of the underlying change, and mirrors each profile into a comment on the issue.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(hydrateCmd)
	rootCmd.AddCommand(rehydrateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("riskradar", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/riskradar/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure repositories, the GitHub token, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored profiles and keyword coverage per repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		repos := cfg.GitHub.Repositories
		if len(repos) == 0 {
			fmt.Println("No repositories configured. Add them under github.repositories in the config.")
			return nil
		}

		for _, repo := range repos {
			profiles, err := db.GetAllProfiles(repo)
			if err != nil {
				return fmt.Errorf("reading profiles for %s: %w", repo, err)
			}

			counts := map[database.RiskLevel]int{}
			for _, p := range profiles {
				counts[p.RiskLevel]++
			}

			fmt.Printf("%s:\n", repo)
			fmt.Printf("  Profiles: %d (high %d, medium %d, low %d)\n",
				len(profiles), counts[database.RiskHigh], counts[database.RiskMedium], counts[database.RiskLow])

			coverage, err := db.GetKeywordCoverage(repo)
			if err != nil {
				return fmt.Errorf("reading keyword coverage for %s: %w", repo, err)
			}
			fmt.Printf("  Keyword coverage: %d/%d (%.0f%%)\n",
				coverage.WithKeywords, coverage.Total, coverage.CoveragePct)

			missing, err := db.ClosedIssuesWithoutKeywords(repo, 10)
			if err != nil {
				return fmt.Errorf("reading keyword gaps for %s: %w", repo, err)
			}
			if len(missing) > 0 {
				fmt.Println("  Closed issues without keywords:")
				for _, p := range missing {
					fmt.Printf("    #%d %s\n", p.IssueNumber, p.IssueTitle)
				}
			}
			fmt.Println()
		}
		return nil
	},
}

// --- hydrate command ---

var (
	hydrateForce   bool
	hydrateTimeout time.Duration
)

var hydrateCmd = &cobra.Command{
	Use:   "hydrate [owner/repo] [issue]",
	Short: "Compute risk profiles for recent issues, or one specific issue",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := resolveRepos(args)
		if err != nil {
			return err
		}

		sched, err := openScheduler()
		if err != nil {
			return err
		}
		defer sched.Dispose()

		ctx := context.Background()

		if len(args) == 2 {
			issueNumber, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid issue number: %s", args[1])
			}
			sched.QueueHydration(ctx, repos[0], issueNumber, hydrateForce)
			if err := sched.WaitForIdle(hydrateTimeout); err != nil {
				return err
			}
			printSummary(sched, repos[0], issueNumber)
			return nil
		}

		client, err := gateway.New(cfg.Token())
		if err != nil {
			return err
		}
		for _, repo := range repos {
			issues, err := client.ListRecentIssues(ctx, repo, cfg.Engine.LookbackDays)
			if err != nil {
				return fmt.Errorf("listing issues for %s: %w", repo, err)
			}
			fmt.Printf("%s: %d issues updated in the last %d days\n", repo, len(issues), cfg.Engine.LookbackDays)

			sched.PrimeIssues(ctx, repo, issues)
			if err := sched.WaitForIdle(hydrateTimeout); err != nil {
				return err
			}
			for _, issue := range issues {
				printSummary(sched, repo, issue.Number)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	hydrateCmd.Flags().BoolVar(&hydrateForce, "force", false, "Post a fresh comment instead of editing the existing one")
	hydrateCmd.Flags().DurationVar(&hydrateTimeout, "timeout", 10*time.Minute, "Give up waiting for the queue to drain")
}

func printSummary(sched *hydrator.Scheduler, repo string, issueNumber int) {
	summary, ok := sched.GetSummary(repo, issueNumber)
	if !ok {
		return
	}
	switch summary.Status {
	case hydrator.StatusReady:
		fmt.Printf("  #%-5d %-6s score %3.0f", issueNumber, summary.RiskLevel, summary.RiskScore)
		if len(summary.TopDrivers) > 0 {
			fmt.Printf("  %s", summary.TopDrivers[0])
		}
		fmt.Println()
	case hydrator.StatusSkipped:
		if verbose {
			fmt.Printf("  #%-5d skipped: %s\n", issueNumber, summary.Message)
		}
	case hydrator.StatusError:
		fmt.Printf("  #%-5d error: %s\n", issueNumber, summary.Message)
	}
}

// --- rehydrate command ---

var rehydrateCmd = &cobra.Command{
	Use:   "rehydrate [owner/repo]",
	Short: "Rebuild the local store by parsing previously published comments",
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := resolveRepos(args)
		if err != nil {
			return err
		}

		sched, err := openScheduler()
		if err != nil {
			return err
		}
		defer sched.Dispose()

		ctx := context.Background()
		for _, repo := range repos {
			recovered, err := sched.RehydrateFromComments(ctx, repo)
			if err != nil {
				return err
			}
			fmt.Printf("%s: recovered %d profile(s) from comments\n", repo, recovered)
		}
		return nil
	},
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show [owner/repo] [issue]",
	Short: "Print the stored risk profile for one issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		issueNumber, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid issue number: %s", args[1])
		}

		profile, err := db.GetProfile(args[0], issueNumber)
		if err != nil {
			return err
		}
		if profile == nil {
			return fmt.Errorf("no profile stored for %s#%d", args[0], issueNumber)
		}

		fmt.Println(comment.Render(profile))
		return nil
	},
}

// --- similar command ---

var similarLimit int

var similarCmd = &cobra.Command{
	Use:   "similar [owner/repo] [issue]",
	Short: "Find stored profiles with overlapping keywords",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		issueNumber, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid issue number: %s", args[1])
		}

		profile, err := db.GetProfile(args[0], issueNumber)
		if err != nil {
			return err
		}
		if profile == nil {
			return fmt.Errorf("no profile stored for %s#%d", args[0], issueNumber)
		}
		if len(profile.Keywords) == 0 {
			fmt.Printf("#%d has no keywords; nothing to match against.\n", issueNumber)
			return nil
		}

		matches, err := similarity.FindSimilar(db, args[0], profile.Keywords, issueNumber, similarLimit)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No similar issues found.")
			return nil
		}

		for _, m := range matches {
			fmt.Printf("#%-5d %.2f  %s\n", m.Profile.IssueNumber, m.Score, m.Profile.IssueTitle)
			fmt.Printf("       shared: %v\n", m.SharedKeywords)
		}
		return nil
	},
}

func init() {
	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 5, "Maximum number of matches")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local status server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Starting server at http://localhost:%d\n", servePort)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg.GitHub.Repositories, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- helpers ---

func resolveRepos(args []string) ([]string, error) {
	if len(args) > 0 {
		return []string{args[0]}, nil
	}
	if len(cfg.GitHub.Repositories) == 0 {
		return nil, fmt.Errorf("no repository given and none configured under github.repositories")
	}
	return cfg.GitHub.Repositories, nil
}

func openScheduler() (*hydrator.Scheduler, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}

	client, err := gateway.New(cfg.Token())
	if err != nil {
		db.Close()
		return nil, err
	}

	var extractor llm.Extractor
	if provider := llm.CreateProvider(
		cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.OllamaURL,
		cfg.LLM.OpenAIModel, cfg.LLM.APIKeyEnv,
	); provider != nil {
		extractor = llm.NewExtractor(provider)
	}

	var sink telemetry.Sink = telemetry.NopSink{}
	if verbose {
		sink = telemetry.LogSink{}
	}

	return hydrator.New(db, client, extractor, sink, hydrator.Options{
		LookbackDays:    cfg.Engine.LookbackDays,
		LabelFilters:    cfg.Engine.LabelFilters,
		PublishComments: cfg.Engine.PublishComments,
	}), nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "riskradar.db")
	return database.Open(dbPath)
}
