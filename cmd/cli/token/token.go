package token

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/crucial707/asset-audit/cmd/cli/config"
)

// InitToken registers the token command on the root command.
func InitToken(rootCmd *cobra.Command) {
	rootCmd.AddCommand(tokenCmd())
}

// Mint signs an HS256 token carrying the user_id claim the API expects.
func Mint(secret string, userID int, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	if userID <= 0 {
		return "", errors.New("user id must be positive")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// tokenCmd mints a token from the shared secret. Intended for operators and local development.
func tokenCmd() *cobra.Command {
	var secret string
	var userID int
	var ttl time.Duration
	var save bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token from the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			tok, err := Mint(secret, userID, ttl)
			if err != nil {
				return err
			}
			if save {
				if err := config.SaveToken(tok); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
				fmt.Println("Token stored at", config.TokenPath())
				return nil
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "JWT secret (defaults to $JWT_SECRET)")
	cmd.Flags().IntVar(&userID, "user-id", 1, "user id recorded in the activity log")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token for later commands instead of printing it")
	return cmd
}
