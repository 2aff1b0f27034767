package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/handler"
	"marketplace/internal/infrastructure/database"
	"marketplace/internal/seed"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		// Open 内部已经执行迁移
		db, err := database.Open(&cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		log.Println("数据库迁移完成")
		return nil
	},
}

var catalogPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the item catalog into the store",
	Long:  `Insert every item of a TOML catalog whose name is not yet in the store. Existing items are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		items, err := seed.LoadCatalog(catalogPath)
		if err != nil {
			return err
		}

		db, err := database.Open(&cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		created, err := seed.Apply(context.Background(), db, items)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d items\n", created, len(items))
		return nil
	},
}

var (
	tokenUserID int64
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development JWT for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret 未配置")
		}
		if tokenUserID <= 0 {
			return errors.New("--user 必须大于 0")
		}

		token, err := handler.NewToken([]byte(cfg.Auth.JWTSecret), tokenUserID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&catalogPath, "catalog", "config/catalog.toml", "Path to the TOML item catalog")
	tokenCmd.Flags().Int64Var(&tokenUserID, "user", 0, "User id carried in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
