package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexcabrera/easel/internal/datauri"
	"github.com/alexcabrera/easel/internal/flows"
	"github.com/alexcabrera/easel/internal/pipe"
)

func newFlowsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flows",
		Short:   "Inspect and run generation flows",
		Aliases: []string{"flow"},
		Long: `Inspect and run generation flows.

Each flow has a named input and output contract and is bound to a model.
Inputs are JSON objects; images are base64 data URIs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listFlowsCmd(flags).RunE(cmd, args)
		},
	}

	cmd.AddCommand(listFlowsCmd(flags))
	cmd.AddCommand(showFlowCmd(flags))
	cmd.AddCommand(validateFlowCmd(flags))
	cmd.AddCommand(runFlowCmd(flags))
	cmd.AddCommand(historyFlowsCmd(flags))

	return cmd
}

// loadRegistry builds the flow registry from config without creating any
// model backend.
func loadRegistry(flags *rootFlags) (*flows.Registry, error) {
	cfg, _, err := loadConfig(flags.cfgPath)
	if err != nil {
		return nil, err
	}
	return flows.NewDefaultRegistry(flows.Models{Image: cfg.ImageModel, Chat: cfg.ChatModel})
}

func listFlowsCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(flags)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputFlowsJSON(cmd.OutOrStdout(), registry.Flows())
			}
			return outputFlowsTable(cmd.OutOrStdout(), registry.Flows())
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type flowJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Version     string          `json:"version"`
	Model       string          `json:"model"`
	Produces    flows.Produces  `json:"produces"`
	Input       json.RawMessage `json:"input_schema,omitempty"`
	Output      json.RawMessage `json:"output_schema,omitempty"`
}

func describeFlow(f *flows.Flow, withSchemas bool) (flowJSON, error) {
	out := flowJSON{
		Name:        f.Name,
		Description: f.Description,
		Version:     f.Version,
		Model:       f.Model,
		Produces:    f.Produces,
	}
	if !withSchemas {
		return out, nil
	}

	var err error
	if out.Input, err = f.Input.JSONSchema(f.Name + " input"); err != nil {
		return out, fmt.Errorf("input schema: %w", err)
	}
	if out.Output, err = f.Output.JSONSchema(f.Name + " output"); err != nil {
		return out, fmt.Errorf("output schema: %w", err)
	}
	return out, nil
}

func outputFlowsJSON(w io.Writer, flowList []*flows.Flow) error {
	output := make([]flowJSON, 0, len(flowList))
	for _, f := range flowList {
		d, err := describeFlow(f, false)
		if err != nil {
			return err
		}
		output = append(output, d)
	}
	return writeJSON(w, output)
}

func outputFlowsTable(w io.Writer, flowList []*flows.Flow) error {
	purple := lipgloss.Color("#a78bfa")
	cyan := lipgloss.Color("#67e8f9")
	muted := lipgloss.Color("#6b7280")

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(purple)
	nameStyle := lipgloss.NewStyle().Foreground(cyan).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e7eb"))

	nameWidth := 20
	for _, f := range flowList {
		nameWidth = max(nameWidth, len(f.Name))
	}
	producesWidth := 8

	fmt.Fprintf(w, "%s  %s  %s\n",
		headerStyle.Render(padRight("NAME", nameWidth)),
		headerStyle.Render(padRight("OUTPUT", producesWidth)),
		headerStyle.Render("DESCRIPTION"),
	)

	for _, f := range flowList {
		desc := f.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			nameStyle.Render(padRight(f.Name, nameWidth)),
			mutedStyle.Render(padRight(string(f.Produces), producesWidth)),
			descStyle.Render(desc),
		)
	}

	return nil
}

func showFlowCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a flow's contract",
		Long:  "Show a flow's model binding and its input and output contracts as JSON Schema.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(flags)
			if err != nil {
				return err
			}
			f, err := registry.Resolve(args[0])
			if err != nil {
				return printFlowError(cmd.ErrOrStderr(), err)
			}

			d, err := describeFlow(f, true)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			return outputFlowDetails(cmd.OutOrStdout(), f, d)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func outputFlowDetails(w io.Writer, f *flows.Flow, d flowJSON) error {
	purple := lipgloss.Color("#a78bfa")
	cyan := lipgloss.Color("#67e8f9")
	muted := lipgloss.Color("#6b7280")
	green := lipgloss.Color("#34d399")

	labelStyle := lipgloss.NewStyle().Foreground(muted).Width(14)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e7eb"))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(purple)
	fieldStyle := lipgloss.NewStyle().Foreground(cyan)
	requiredStyle := lipgloss.NewStyle().Foreground(green)

	fmt.Fprintln(w, headerStyle.Render(f.Name))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Description:"), valueStyle.Render(f.Description))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Version:"), valueStyle.Render(f.Version))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Model:"), valueStyle.Render(f.Model))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Produces:"), valueStyle.Render(string(f.Produces)))

	for _, section := range []struct {
		title  string
		schema flows.Schema
		doc    json.RawMessage
	}{
		{"Input:", f.Input, d.Input},
		{"Output:", f.Output, d.Output},
	} {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(section.title))
		for _, field := range section.schema.Fields {
			req := ""
			if field.Required {
				req = requiredStyle.Render(" required")
			}
			fmt.Fprintf(w, "  %s %s%s\n",
				fieldStyle.Render(padRight(field.Name, 20)),
				valueStyle.Render(string(field.Kind)),
				req,
			)
			if field.Description != "" {
				fmt.Fprintf(w, "  %s %s\n", padRight("", 20), labelStyle.UnsetWidth().Render(field.Description))
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, formatJSON(string(section.doc)))
	}

	return nil
}

// flowInput collects a flow input from, in order: a positional argument,
// --input, or stdin. Each --file key=path sets key to the file's contents
// as a data URI; repeating a key builds a list.
type flowInput struct {
	inputFile string
	files     []string
}

func (fi *flowInput) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&fi.inputFile, "input", "i", "", "Input JSON file path")
	cmd.Flags().StringArrayVarP(&fi.files, "file", "f", nil, "Set a field to an image file, as key=path (repeatable)")
}

func (fi *flowInput) read(args []string) (map[string]any, error) {
	var raw []byte
	switch {
	case len(args) > 0:
		raw = []byte(args[0])
	case fi.inputFile != "":
		data, err := os.ReadFile(fi.inputFile)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		raw = data
	case pipe.IsStdinPiped():
		data, err := pipe.ReadStdin()
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = data
	}

	input := map[string]any{}
	if s := strings.TrimSpace(string(raw)); s != "" {
		if err := json.Unmarshal([]byte(s), &input); err != nil {
			return nil, fmt.Errorf("input is not a JSON object: %w", err)
		}
		if input == nil {
			return nil, errors.New("input is not a JSON object")
		}
	}

	for _, arg := range fi.files {
		key, path, ok := strings.Cut(arg, "=")
		if !ok || key == "" || path == "" {
			return nil, fmt.Errorf("invalid --file %q: want key=path", arg)
		}
		uri, err := readImage(path)
		if err != nil {
			return nil, err
		}
		switch v := input[key].(type) {
		case nil:
			input[key] = uri
		case []any:
			input[key] = append(v, uri)
		default:
			input[key] = []any{v, uri}
		}
	}

	return input, nil
}

func validateFlowCmd(flags *rootFlags) *cobra.Command {
	var in flowInput

	cmd := &cobra.Command{
		Use:   "validate <name> [input]",
		Short: "Validate input against a flow's contract without calling the model",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(flags)
			if err != nil {
				return err
			}
			input, err := in.read(args[1:])
			if err != nil {
				return err
			}

			executor := flows.NewExecutor(registry, nil)
			if err := executor.Validate(args[0], input); err != nil {
				return printFlowError(cmd.ErrOrStderr(), err)
			}

			successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#34d399"))
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("v Input is valid for "+args[0]))
			return nil
		},
	}

	in.register(cmd)

	return cmd
}

func runFlowCmd(flags *rootFlags) *cobra.Command {
	var in flowInput
	var outputPath string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <name> [input]",
		Short: "Execute a flow",
		Long: `Execute a flow and print its output as JSON.

Input can be provided as:
  - Second argument: easel flows run backgroundFillFlow '{"prompt": "dunes", "width": 512, "height": 512}'
  - Stdin: echo '{...}' | easel flows run backgroundFillFlow
  - File: easel flows run variationFlow --input data.json --file sourceImage=cat.png

Exit codes:
  0 - Success
  1 - General error
  2 - Unknown flow or invalid input
  3 - Flow execution failed
  124 - Timeout`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := in.read(args[1:])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("timeout") {
				timeout = a.cfg.RequestTimeout
			}
			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			out, err := a.runner.Execute(ctx, args[0], input)
			if err != nil {
				return printFlowError(cmd.ErrOrStderr(), err)
			}

			if outputPath != "" && out.Image != "" {
				if err := writeImage(outputPath, out.Image); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "wrote "+outputPath)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	in.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the generated image to this file instead of printing JSON")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Request timeout (defaults to request_timeout from config)")

	return cmd
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func historyFlowsCmd(flags *rootFlags) *cobra.Command {
	var flowName string
	var status string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show flow run history",
		Long: `Show history of flow executions.

Filter by:
  --flow <name>     Show runs for a specific flow
  --status <status> Filter by status (success, failed, running)
  --limit <n>       Limit number of results (default 50)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closeDB, err := openHistory(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := history.ListRuns(cmd.Context(), flows.RunFilter{
				FlowName: flowName,
				Status:   flows.RunStatus(status),
				Limit:    int64(limit),
			})
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No flow runs found.")
				return nil
			}
			return outputHistoryTable(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().StringVar(&flowName, "flow", "", "Filter by flow name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (success, failed, running)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(historyShowCmd(flags))

	return cmd
}

func historyShowCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show details of a run (ID prefixes are accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closeDB, err := openHistory(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeDB()

			run, err := history.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			return outputRunDetails(cmd.OutOrStdout(), run)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func statusStyle(status flows.RunStatus) lipgloss.Style {
	switch status {
	case flows.RunStatusSuccess:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#34d399"))
	case flows.RunStatusFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	case flows.RunStatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#fbbf24"))
	default:
		return lipgloss.NewStyle()
	}
}

func outputHistoryTable(w io.Writer, runs []*flows.Run) error {
	purple := lipgloss.Color("#a78bfa")
	cyan := lipgloss.Color("#67e8f9")
	muted := lipgloss.Color("#6b7280")

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(purple)
	idStyle := lipgloss.NewStyle().Foreground(muted)
	nameStyle := lipgloss.NewStyle().Foreground(cyan)

	idWidth := 10
	nameWidth := 22
	statusWidth := 8
	durationWidth := 10

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		headerStyle.Render(padRight("ID", idWidth)),
		headerStyle.Render(padRight("FLOW", nameWidth)),
		headerStyle.Render(padRight("STATUS", statusWidth)),
		headerStyle.Render(padRight("DURATION", durationWidth)),
		headerStyle.Render("STARTED"),
	)

	for _, run := range runs {
		id := run.ID
		if len(id) > idWidth {
			id = id[:idWidth]
		}

		name := run.FlowName
		if len(name) > nameWidth {
			name = name[:nameWidth-3] + "..."
		}

		duration := "-"
		if run.DurationMs > 0 {
			duration = formatDuration(time.Duration(run.DurationMs) * time.Millisecond)
		}

		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			idStyle.Render(padRight(id, idWidth)),
			nameStyle.Render(padRight(name, nameWidth)),
			statusStyle(run.Status).Render(padRight(string(run.Status), statusWidth)),
			padRight(duration, durationWidth),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func outputRunDetails(w io.Writer, run *flows.Run) error {
	purple := lipgloss.Color("#a78bfa")
	muted := lipgloss.Color("#6b7280")

	labelStyle := lipgloss.NewStyle().Foreground(muted).Width(14)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e7eb"))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(purple)
	failedStyle := statusStyle(flows.RunStatusFailed)

	fmt.Fprintln(w, headerStyle.Render("Flow Run: "+run.ID))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Flow:"), valueStyle.Render(run.FlowName))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Model:"), valueStyle.Render(run.Model))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Status:"), statusStyle(run.Status).Render(string(run.Status)))
	if run.ErrorKind != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Error Kind:"), failedStyle.Render(string(run.ErrorKind)))
	}

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Started:"), valueStyle.Render(run.StartedAt.Format(time.RFC3339)))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Finished:"), valueStyle.Render(run.FinishedAt.Format(time.RFC3339)))
	}
	if run.DurationMs > 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Duration:"), valueStyle.Render(formatDuration(time.Duration(run.DurationMs)*time.Millisecond)))
	}

	if run.ErrorMessage != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Error:"))
		fmt.Fprintln(w, failedStyle.Render("  "+run.ErrorMessage))
	}

	if run.InputJSON != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Input:"))
		fmt.Fprintln(w, formatJSON(run.InputJSON))
	}

	if run.OutputJSON != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Output:"))
		fmt.Fprintln(w, formatJSON(run.OutputJSON))
	}

	return nil
}

// readImage loads an image file as a data URI.
func readImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return datauri.EncodeDetect(data), nil
}

// writeImage decodes a data URI into path.
func writeImage(path, uri string) error {
	u, err := datauri.Parse(uri)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := os.WriteFile(path, u.Data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// padRight pads a string to the specified width
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func formatJSON(s string) string {
	var obj any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return "  " + s
	}
	formatted, err := json.MarshalIndent(obj, "  ", "  ")
	if err != nil {
		return "  " + s
	}
	return "  " + string(formatted)
}
