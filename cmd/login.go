package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"eventcal/internal/auth"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store session tokens",
	Long: `Login authenticates against the event scheduler server and stores the
session tokens for later commands. Credentials are prompted for unless
given as flags.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reader := bufio.NewReader(os.Stdin)
	if loginUsername == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		loginUsername = strings.TrimSpace(line)
	}
	if loginPassword == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		loginPassword = strings.TrimSpace(line)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := a.auth.Login(ctx, loginUsername, loginPassword)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fmt.Errorf("invalid username or password")
	case errors.Is(err, auth.ErrUnreachable):
		return fmt.Errorf("server unreachable at %s", a.cfg.BaseURL)
	case err != nil:
		return err
	}

	fmt.Printf("Signed in as %s\n", sess.User.Username)
	return nil
}
