package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/config"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [PASSWORD]",
	Short: "Print a bcrypt hash for DEV_USER_PASSWORD_HASH",
	Long: `Hash a password with the server's BCRYPT_COST and PASSWORD_PEPPER settings.
Without an argument the password is read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passwords, err := config.NewPasswordConfig()
		if err != nil {
			return err
		}

		var password string
		if len(args) == 1 {
			password = args[0]
		} else if password, err = readSecret(cmd.InOrStdin()); err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("password is empty")
		}

		hash, err := passwords.HashPassword(password)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
