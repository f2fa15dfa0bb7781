package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/hiring-pipeline/internal/config"
	"github.com/jonathan/hiring-pipeline/internal/server"
)

var tokenActor string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for local testing",
	Long:  `Sign a bearer token with JWT_SECRET for the given actor. Production tokens come from the session service.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenActor, "actor", "", "Actor (recruiter) ID; a random one is used when empty")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	jwtCfg, err := cfg.JWT()
	if err != nil {
		return err
	}
	if jwtCfg == nil {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	actor := uuid.New()
	if tokenActor != "" {
		actor, err = uuid.Parse(tokenActor)
		if err != nil {
			return fmt.Errorf("invalid --actor: %w", err)
		}
	}

	token, err := server.NewJWTService(jwtCfg).GenerateToken(actor)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
