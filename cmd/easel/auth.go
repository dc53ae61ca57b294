package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexcabrera/easel/internal/config"
	"github.com/alexcabrera/easel/internal/paths"
	"github.com/alexcabrera/easel/internal/pipe"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored provider API keys",
	}

	cmd.AddCommand(authSetCmd())
	cmd.AddCommand(authListCmd())

	return cmd
}

func authSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key (reads the key from stdin when omitted)",
		Long: `Store an API key for a provider: google, openai, anthropic, or openrouter.

The key is saved to the credentials file with 0600 permissions and exported
to the provider's environment variable when easel runs.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(args[0])

			key, err := readAPIKey(cmd.Context(), provider, args[1:], keySource{
				piped:  pipe.IsStdinPiped(),
				stdin:  pipe.ReadStdin,
				prompt: promptAPIKey,
			})
			if err != nil {
				return err
			}

			path := paths.CredentialsFile()
			creds, err := config.LoadCredentials(path)
			if err != nil {
				return err
			}
			creds.Set(provider, key)
			if err := creds.Save(path); err != nil {
				return fmt.Errorf("save credentials: %w", err)
			}

			successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#34d399"))
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("v Stored key for "+provider))
			return nil
		},
	}

	return cmd
}

// keySource supplies an API key when none is given on the command line.
type keySource struct {
	piped  bool
	stdin  func() ([]byte, error)
	prompt func(ctx context.Context, provider string) (string, error)
}

func readAPIKey(ctx context.Context, provider string, args []string, src keySource) (string, error) {
	var key string
	switch {
	case len(args) > 0:
		key = args[0]
	case src.piped:
		data, err := src.stdin()
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		key = string(data)
	default:
		var err error
		key, err = src.prompt(ctx, provider)
		if err != nil {
			return "", err
		}
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("no API key given")
	}
	return key, nil
}

func promptAPIKey(ctx context.Context, provider string) (string, error) {
	var key string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(provider + " API key").
				EchoMode(huh.EchoModePassword).
				Value(&key).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return fmt.Errorf("required")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return key, nil
}

func authListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers with stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := config.LoadCredentials(paths.CredentialsFile())
			if err != nil {
				return err
			}
			providers := creds.Providers()
			if len(providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored keys.")
				return nil
			}
			for _, p := range providers {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
