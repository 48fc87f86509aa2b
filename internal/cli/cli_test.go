package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/service"
	"github.com/yourusername/microlearn-api/internal/service/engine"
	"github.com/yourusername/microlearn-api/pkg/auth"
)

const testConfigYAML = `
database:
  host: localhost
  user: postgres
  dbname: microlearn_test
redis:
  addr: localhost:6379
jwt:
  secret: cli-test-secret
  issuer: microlearn-auth
  expirationHrs: 1
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))
	return path
}

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// ============================================================================
// token
// ============================================================================

func TestTokenCmd_IssuesParsableToken(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantAdmin bool
	}{
		{"игрок", []string{"--player", "42"}, false},
		{"администратор", []string{"--player", "7", "--admin"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			cfgPath := writeTestConfig(t)
			args := append([]string{"token", "--config", cfgPath}, tt.args...)

			// Act
			out, err := executeCmd(t, args...)

			// Assert
			require.NoError(t, err)
			svc, err := auth.NewJWTService("cli-test-secret", "microlearn-auth", 1)
			require.NoError(t, err)
			claims, err := svc.ParseToken(strings.TrimSpace(out))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdmin, claims.IsAdmin())
		})
	}
}

func TestTokenCmd_RequiresPlayer(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := executeCmd(t, "token", "--config", cfgPath)

	assert.Error(t, err)
}

func TestMigrateForce_RejectsInvalidVersion(t *testing.T) {
	_, err := executeCmd(t, "migrate", "force", "abc")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version")
}

// ============================================================================
// pool-stats
// ============================================================================

func TestPrintPoolStats(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := printPoolStats(cmd, []service.PoolStats{
		{Tier: entity.TierEasy, Active: 40, PerSession: 5},
		{Tier: entity.TierExpert, Active: 2, PerSession: 10, Exhausted: true},
	})

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TIER")
	assert.Contains(t, lines[1], "easy")
	assert.Contains(t, lines[1], "ok")
	assert.Contains(t, lines[2], "expert")
	assert.Contains(t, lines[2], "exhausted")
}

func TestPerSessionCounts(t *testing.T) {
	cfg := engine.DefaultConfig()

	counts := perSessionCounts(cfg)

	require.Len(t, counts, len(cfg.Tiers))
	for tier, tc := range cfg.Tiers {
		assert.Equal(t, tc.QuestionCount, counts[tier])
	}
}
