package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quotagen/internal/config"
	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/store"
)

// appConfig is loaded once per invocation by the root pre-run hook.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "quotagen",
	Short: "Keep an assessment question bank at its curriculum quotas",
	Long: "quotagen audits a question bank against per-cell curriculum quotas, " +
		"generates and validates new questions for deficit cells, and prunes " +
		"surplus so every section stays balanced.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to quotagen.yaml (default: ./quotagen.yaml or ~/.config/quotagen)")
	rootCmd.PersistentFlags().String("db", "", "Database DSN or SQLite file path (overrides store.dsn)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite or postgres (overrides store.driver)")
	rootCmd.PersistentFlags().String("curriculum", "", "Curriculum file or directory (overrides curriculum.path)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(curriculumCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.Store.DSN = v
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.Store.Driver = v
	}
	if v, _ := cmd.Flags().GetString("curriculum"); v != "" {
		cfg.Curriculum.Path = v
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

// openStore opens the configured store. An empty SQLite DSN resolves to the
// default data directory.
func openStore() (*store.Store, error) {
	dsn := appConfig.Store.DSN
	if appConfig.Store.Driver == store.DriverSQLite {
		var err error
		if dsn == "" {
			dsn, err = store.DefaultDBPath()
		} else {
			err = store.EnsureDir(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}

	s, err := store.Open(appConfig.Store.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func loadCatalog() (*curriculum.Catalog, error) {
	cat, err := curriculum.LoadPath(appConfig.Curriculum.Path)
	if err != nil {
		return nil, fmt.Errorf("load curriculum: %w", err)
	}
	return cat, nil
}
