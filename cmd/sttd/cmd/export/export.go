package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmlat/STT-Telegram/internal/app/export"
	"github.com/dmlat/STT-Telegram/internal/app/model"
	"github.com/dmlat/STT-Telegram/internal/app/repository"
	"github.com/dmlat/STT-Telegram/internal/app/repository/pg"
	"github.com/dmlat/STT-Telegram/internal/app/repository/sqlite"
	"github.com/dmlat/STT-Telegram/internal/config"
)

var userID int64
var outputFilePath string

func init() {
	Cmd.Flags().Int64VarP(&userID, "user", "u", 0, "only export jobs of this user id")
	Cmd.Flags().StringVarP(&outputFilePath, "output", "o", "", "path of the xlsx workbook to write")

	Cmd.MarkFlagRequired("output")
}

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored job history to excel",
	Long: `Export the stored job history to excel

- Without --user every job in the database is exported`,
	Run: func(cmd *cobra.Command, args []string) {
		dbCfg, err := config.LoadDatabase()
		if err != nil {
			log.Fatal(err)
		}

		store, err := openStore(dbCfg)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()

		jobs, err := loadJobs(store)
		if err != nil {
			log.Fatal(err)
		}

		manager := export.NewProgressManager(export.ProgressConfig{
			Enabled: export.ShouldShowProgress(false),
		})
		bar := manager.CreateBar(len(jobs), "Exporting jobs")

		if err := export.ToExcel(jobs, outputFilePath, bar); err != nil {
			log.Fatal(err)
		}
		bar.Complete()
		manager.Wait()

		fmt.Printf("export finished, %d jobs written to %v\n", len(jobs), outputFilePath)
	},
}

func openStore(cfg config.DatabaseConfig) (repository.Store, error) {
	if cfg.Backend == "postgres" {
		return pg.NewPostgresDB(cfg.DatabaseURL)
	}
	return sqlite.NewSQLiteDB(cfg.SQLitePath)
}

func loadJobs(store repository.Store) ([]model.JobRecord, error) {
	ctx := context.Background()
	if userID > 0 {
		return store.JobsByUser(ctx, userID)
	}
	return store.ListJobsSince(ctx, time.Time{})
}
