package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/database"
	"blackroad.io/operator/internal/ledger"
	"blackroad.io/operator/internal/logging"
)

var (
	dbPath      string
	dbNoAnalyze bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Maintain the operator database",
	Long: `Local maintenance commands that open the SQLite database directly.

Stop the server or point at a copy before running compact on a busy database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(db *sql.DB, logger *zap.Logger) error {
			printOK(cmd.OutOrStdout(), "schema up to date (%s)", dbPath)
			return nil
		})
	},
}

var dbCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "VACUUM and ANALYZE the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(db *sql.DB, logger *zap.Logger) error {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Running VACUUM (this may take a while)...")
			res, err := database.Compact(cmd.Context(), db, !dbNoAnalyze, logger)
			if err != nil {
				return err
			}
			return emit(w, res, func(w io.Writer) {
				const mb = 1024 * 1024
				fmt.Fprintf(w, "Database size before: %.2f MB (%d pages x %d bytes)\n",
					float64(res.SizeBefore())/mb, res.PagesBefore, res.PageSize)
				fmt.Fprintf(w, "Database size after:  %.2f MB (%d pages x %d bytes)\n",
					float64(res.SizeAfter())/mb, res.PagesAfter, res.PageSize)
				fmt.Fprintf(w, "Space reclaimed:      %.2f MB\n", float64(res.Reclaimed())/mb)
				if res.Analyzed {
					printOK(w, "ANALYZE completed")
				}
				printOK(w, "database compaction completed")
			})
		})
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show table row counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(db *sql.DB, logger *zap.Logger) error {
			counts := database.Stats(cmd.Context(), db, logger)
			return emit(cmd.OutOrStdout(), counts, func(w io.Writer) {
				printHeader(w, "Table Statistics")
				for _, c := range counts {
					fmt.Fprintf(w, "  %-20s %d rows\n", c.Table+":", c.Rows)
				}
			})
		})
	},
}

var dbVerifyLedgerCmd = &cobra.Command{
	Use:   "verify-ledger",
	Short: "Verify the ledger hash chain directly from the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(db *sql.DB, logger *zap.Logger) error {
			report, verifyErr := ledger.New(db, logger).Verify(cmd.Context())
			if report == nil {
				return verifyErr
			}
			if err := emit(cmd.OutOrStdout(), report, func(w io.Writer) { printVerification(w, report) }); err != nil {
				return err
			}
			return verifyErr
		})
	},
}

func init() {
	dbCmd.PersistentFlags().StringVar(&dbPath, "db", getEnv("OPERATOR_DB_PATH", "./operator.db"), "Path to SQLite database")
	dbCompactCmd.Flags().BoolVar(&dbNoAnalyze, "no-analyze", false, "Skip ANALYZE after VACUUM")

	dbCmd.AddCommand(dbMigrateCmd, dbCompactCmd, dbStatsCmd, dbVerifyLedgerCmd)
	rootCmd.AddCommand(dbCmd)
}

// withDatabase opens and migrates the database at dbPath, then runs fn.
func withDatabase(ctx context.Context, fn func(*sql.DB, *zap.Logger) error) error {
	logger, err := logging.NewCLI(verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(ctx, dbPath, database.DefaultOptions(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	return fn(db, logger)
}
