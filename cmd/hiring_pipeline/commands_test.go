package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiring-pipeline/internal/config"
	"github.com/jonathan/hiring-pipeline/internal/server"
)

const testSecret = "command-test-secret-0123456789"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		tokenActor = ""
		configPath = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "token"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	sub := map[string]bool{}
	for _, c := range migrateCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.True(t, sub["up"])
	assert.True(t, sub["down"])
}

func TestServe_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestMigrateDown_RejectsNegativeSteps(t *testing.T) {
	_, err := execute(t, "migrate", "down", "--num-steps=-2", "--yes")
	t.Cleanup(func() { migrateSteps = 1; migrateYes = false })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hiring")
	t.Setenv("JWT_SECRET", testSecret)
	actor := uuid.New()

	out, err := execute(t, "token", "--actor", actor.String())
	require.NoError(t, err)

	jwtCfg, err := config.NewJWTConfig(testSecret, 0)
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtCfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, actor, claims.ActorID)
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hiring")
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
