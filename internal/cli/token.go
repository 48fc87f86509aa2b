package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/pkg/auth"
)

// NewTokenCmd выпускает токен доступа для локальной отладки и служебных вызовов
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		playerID uint
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpirationHrs)
			if err != nil {
				return err
			}

			role := auth.RolePlayer
			if admin {
				role = auth.RoleAdmin
			}
			token, err := jwtService.GenerateToken(playerID, role)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().UintVar(&playerID, "player", 0, "player ID to embed in the token")
	cmd.Flags().BoolVar(&admin, "admin", false, "issue an admin token")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}
