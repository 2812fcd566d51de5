package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/remote"
)

var (
	loginEmail         string
	loginPassword      string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the API token",
	Long: `Exchange an email and password for a bearer token and save it to the token
file (default <data-dir>/token). The password is taken from --password,
--password-stdin or the CVSYNC_PASSWORD environment variable.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	_ = loginCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}

	password := loginPassword
	switch {
	case loginPasswordStdin:
		if password, err = readSecret(cmd.InOrStdin()); err != nil {
			return err
		}
	case password == "":
		password = os.Getenv("CVSYNC_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("a password is required (--password, --password-stdin or CVSYNC_PASSWORD)")
	}

	// Login is unauthenticated, so the client needs no token.
	client, err := remote.NewClient(cfg.ServerURL, remote.StaticToken(""), nil)
	if err != nil {
		return err
	}
	resp, err := client.Login(cmd.Context(), loginEmail, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := cfg.SaveToken(resp.Token); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s; token saved to %s (expires %s)\n",
		loginEmail, cfg.TokenPath(), resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}
