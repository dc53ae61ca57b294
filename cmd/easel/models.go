package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexcabrera/easel/internal/config"
)

func newModelsCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Show configured models and available chat models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, creds, err := loadConfig(flags.cfgPath)
			if err != nil {
				return err
			}
			choices := config.ChatModels(cfg)

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"image_model": cfg.ImageModel,
					"chat_model":  cfg.ChatModel,
					"chat_models": choices,
					"providers":   config.DetectProviders(creds),
				})
			}

			w := cmd.OutOrStdout()
			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a78bfa"))
			labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")).Width(14)
			refStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#67e8f9"))
			yes := lipgloss.NewStyle().Foreground(lipgloss.Color("#34d399")).Render("key set")
			no := lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")).Render("no key")

			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Image model:"), refStyle.Render(cfg.ImageModel))
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Chat model:"), refStyle.Render(cfg.ChatModel))

			fmt.Fprintln(w)
			fmt.Fprintln(w, headerStyle.Render("Providers:"))
			for _, p := range config.DetectProviders(creds) {
				status := no
				if p.HasKey {
					status = yes
				}
				fmt.Fprintf(w, "  %s %s\n", padRight(p.Name, 22), status)
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Chat models (%s):", cfg.Provider.ID)))
			if len(choices) == 0 {
				fmt.Fprintln(w, "  No API key for this provider. Add one with: easel auth set "+string(cfg.Provider.ID))
				return nil
			}
			for _, c := range choices {
				fmt.Fprintf(w, "  %s %s\n", refStyle.Render(padRight(c.Ref, 40)), c.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
