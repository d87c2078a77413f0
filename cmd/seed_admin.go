/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safeher/apiserver/config"
	"github.com/safeher/apiserver/internal/db"
	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/internal/store"
)

var seedAdminFlags struct {
	email    string
	password string
	name     string
}

// seedAdminCmd creates the first administrator account.
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create an administrator account if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedAdminFlags.password == "" {
			return errors.New("--password is required")
		}
		cfg := config.LoadConfig()

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn), services.BcryptHasher{})
		user, created, err := users.EnsureAdmin(cmd.Context(), seedAdminFlags.email, seedAdminFlags.password, seedAdminFlags.name)
		if err != nil {
			return err
		}

		log := logging.Logger.WithField("email", user.Email)
		if created {
			log.Info("admin user created")
		} else {
			log.Info("admin user already exists")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)

	seedAdminCmd.Flags().StringVar(&seedAdminFlags.email, "email", "admin@safeher.com", "admin email")
	seedAdminCmd.Flags().StringVar(&seedAdminFlags.password, "password", "", "admin password")
	seedAdminCmd.Flags().StringVar(&seedAdminFlags.name, "name", "System Administrator", "admin full name")
}
