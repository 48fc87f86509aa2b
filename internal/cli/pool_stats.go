package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	pgRepo "github.com/yourusername/microlearn-api/internal/repository/postgres"
	"github.com/yourusername/microlearn-api/internal/service"
	"github.com/yourusername/microlearn-api/internal/service/engine"
	"github.com/yourusername/microlearn-api/pkg/database"
)

// NewPoolStatsCmd печатает размер активного пула по уровням
func NewPoolStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pool-stats",
		Short: "Show active question pool size per tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			engineCfg, err := engine.NewConfig(cfg.Engine)
			if err != nil {
				return err
			}

			db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), logger.Warn)
			if err != nil {
				return err
			}
			defer database.Close(db)

			stats, err := service.NewStatsService(pgRepo.NewQuestionRepo(db)).
				PoolStats(cmd.Context(), perSessionCounts(engineCfg))
			if err != nil {
				return err
			}
			return printPoolStats(cmd, stats)
		},
	}
}

func perSessionCounts(cfg *engine.Config) map[entity.Tier]int {
	out := make(map[entity.Tier]int, len(cfg.Tiers))
	for tier, tc := range cfg.Tiers {
		out[tier] = tc.QuestionCount
	}
	return out
}

func printPoolStats(cmd *cobra.Command, stats []service.PoolStats) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tACTIVE\tPER SESSION\tSTATUS")
	for _, s := range stats {
		status := "ok"
		if s.Exhausted {
			status = "exhausted"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Tier, s.Active, s.PerSession, status)
	}
	return w.Flush()
}
