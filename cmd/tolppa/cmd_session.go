package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tolppa-client/internal/model"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	Long: `Log in to the gateway. The email and password are stored so the
client can log in again by itself when the token is gone.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the token and stored credentials",
	RunE:  runLogout,
}

var tokenCmd = &cobra.Command{
	Use:   "token <cookie>",
	Short: "Store a session token copied from the browser",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	rootCmd.AddCommand(loginCmd, logoutCmd, tokenCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := strings.TrimSpace(loginEmail)
	if email == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return errors.New("email cannot be empty")
	}

	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	if len(passwordBytes) == 0 {
		return errors.New("password cannot be empty")
	}

	a, err := newApp(cmd.Context(), configFrom(cmd), nil)
	if err != nil {
		return err
	}
	defer a.close()

	msg, err := a.engine.Login(cmd.Context(), email, string(passwordBytes))
	if err != nil {
		return err
	}
	if msg.Severity == model.SeverityError {
		return errors.New(msg.Text)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.Text)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), configFrom(cmd), nil)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), configFrom(cmd), nil)
	if err != nil {
		return err
	}
	defer a.close()

	polling, err := a.sessions.Update(cmd.Context(), strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	if !polling {
		fmt.Fprintln(cmd.OutOrStdout(), "Token cleared")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Token saved")
	return nil
}
