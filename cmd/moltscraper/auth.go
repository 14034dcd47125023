package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"moltscraper/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Moltbook API key",
	Long: `Store, inspect, or remove the Moltbook API key.

The key is kept in the system keychain when one is available, otherwise in
an encrypted file under the moltscraper config directory. An exported
MOLTBOOK_API_KEY always takes precedence over stored keys.`,
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the API key securely",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readAPIKey()
		if err != nil {
			return err
		}

		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize key manager: %w", err)
		}
		if err := manager.Store(key); err != nil {
			return err
		}

		fmt.Println("API key stored")
		return nil
	},
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the masked API key currently in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize key manager: %w", err)
		}

		cred, err := manager.Retrieve()
		if err != nil {
			return fmt.Errorf("no API key stored: run 'moltscraper auth set-key'")
		}

		fmt.Printf("API key: %s\n", auth.MaskKey(cred.APIKey))
		if !cred.LastModified.IsZero() {
			fmt.Printf("Stored:  %s\n", cred.LastModified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize key manager: %w", err)
		}
		if err := manager.Delete(); err != nil {
			return err
		}

		fmt.Println("API key deleted")
		return nil
	},
}

// readAPIKey reads the key without echo from a terminal, or from stdin when
// piped
func readAPIKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Moltbook API key: ")
		key, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return strings.TrimSpace(string(key)), nil
	}

	var key string
	if _, err := fmt.Fscanln(os.Stdin, &key); err != nil {
		return "", fmt.Errorf("failed to read key from stdin: %w", err)
	}
	return strings.TrimSpace(key), nil
}

func init() {
	authCmd.AddCommand(authSetKeyCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)

	rootCmd.AddCommand(authCmd)
}
