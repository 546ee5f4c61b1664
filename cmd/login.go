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

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/config"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

var (
	loginUser   string
	loginPass   string
	loginAPIURL string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the APM events API",
	Long: `Logs in with an email or user name and saves the session token locally
for future commands. The session ends when the server-issued expiry passes.

Example:
  apm login --username ops@example.com --password secret`,
	Run: func(cmd *cobra.Command, args []string) {
		if loginAPIURL != "" {
			if err := config.Set(config.KeyAPIURL, loginAPIURL); err != nil {
				fmt.Printf("Failed to save API URL: %v\n", err)
				os.Exit(1)
			}
		}

		if loginUser == "" {
			loginUser = prompt("Email or username: ")
		}
		if loginPass == "" {
			loginPass = prompt("Password: ")
		}
		if loginUser == "" || loginPass == "" {
			fmt.Println("Error: email or username and password are required.")
			os.Exit(1)
		}

		api := newClient("")
		fmt.Printf("Authenticating against %s as '%s'...\n", api.Config.BaseURL, loginUser)

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		sess, err := api.Login(ctx, loginUser, loginPass)
		if err != nil {
			var apiErr *client.APIError
			switch {
			case errors.Is(err, client.ErrEmailNotVerified):
				fmt.Println("Login failed: Please verify your email before logging in")
			case errors.As(err, &apiErr):
				fmt.Printf("Login failed: %s\n", apiErr.Message)
			default:
				fmt.Printf("Login failed: %v\n", err)
			}
			os.Exit(1)
		}

		if err := config.SaveSession(sess); err != nil {
			fmt.Printf("Failed to save configuration file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Logged in as %s (%s).\n", sess.Name, sess.Role)
		if exp := sess.ExpiresAt(); !exp.IsZero() {
			fmt.Printf("Session expires %s.\n", timezone.Format(exp, settings().Timezone))
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.ClearSession(); err != nil {
			fmt.Printf("Failed to save configuration file: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Logged out.")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	Run: func(cmd *cobra.Command, args []string) {
		sess := config.LoadSession()
		if err := sess.Check(time.Now()); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(sess)
			return
		}

		fmt.Printf("Name:    %s\n", sess.Name)
		fmt.Printf("Email:   %s\n", sess.Email)
		fmt.Printf("Role:    %s\n", sess.Role)
		if exp := sess.ExpiresAt(); !exp.IsZero() {
			fmt.Printf("Expires: %s\n", timezone.Format(exp, settings().Timezone))
		}
	},
}

func prompt(label string) string {
	fmt.Print(label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "", "Email or user name")
	loginCmd.Flags().StringVarP(&loginPass, "password", "p", "", "Password (prompted when empty)")
	loginCmd.Flags().StringVar(&loginAPIURL, "api-url", "", "Events API base URL, saved for later commands")
}
