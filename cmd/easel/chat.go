package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/input"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/alexcabrera/easel/internal/editor"
	"github.com/alexcabrera/easel/internal/flows"
	"github.com/alexcabrera/easel/internal/pipe"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the design assistant",
		Long: `Ask the design assistant.

With a message, prints a single reply. Without one, starts a conversation
that reads one message per line until EOF or Ctrl+C. In a terminal, Ctrl+H
prints the conversation so far. Replies are rendered as markdown when
stdout is a terminal.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			session := editor.NewSession(a.runner, editor.NewDocument(0, 0), editor.Options{
				MaxRetries:     a.cfg.Retry.MaxRetries,
				InitialBackoff: a.cfg.Retry.InitialBackoff,
				Timeout:        a.cfg.RequestTimeout,
				Logger:         a.logger,
			})
			c := &chatter{session: session, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			if !pipe.IsStdoutPiped() {
				c.renderer = newMarkdownRenderer(pipe.TerminalWidth(80))
			}

			if len(args) > 0 {
				return c.send(cmd.Context(), strings.Join(args, " "))
			}
			if pipe.IsStdinPiped() {
				return c.loop(cmd.Context(), os.Stdin)
			}
			return c.interact(cmd.Context())
		},
	}

	return cmd
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(max(width, 40), 120)),
	)
	if err != nil {
		return nil
	}
	return r
}

type chatter struct {
	session  *editor.Session
	renderer *glamour.TermRenderer
	out      io.Writer
	errOut   io.Writer
}

func (c *chatter) send(ctx context.Context, message string) error {
	job, err := c.session.SendChatMessage(ctx, message)
	if err != nil {
		return err
	}
	out, err := job.Wait(ctx)
	if err != nil {
		return printFlowError(c.errOut, err)
	}

	reply := out.Reply
	if c.renderer != nil {
		if rendered, err := c.renderer.Render(reply); err == nil {
			reply = rendered
		}
	}
	fmt.Fprintln(c.out, strings.TrimRight(reply, "\n"))
	return nil
}

// loop answers one message per line of piped input. The first failed turn
// ends the conversation.
func (c *chatter) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if err := c.send(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// interact runs the terminal conversation until Ctrl+C or Ctrl+D.
func (c *chatter) interact(ctx context.Context) error {
	promptStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#a78bfa")).Bold(true)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(c.out, promptStyle.Render("> "))

		message, action, err := c.readLine(ctx)
		if err != nil {
			return err
		}

		switch action {
		case keyInterrupt:
			fmt.Fprintln(c.out)
			return nil
		case keyHistory:
			writeChatHistory(c.out, c.session.ChatHistory())
			continue
		}

		message = strings.TrimSpace(message)
		if message == "" {
			continue
		}
		// A failed turn is not fatal to the conversation.
		if err := c.send(ctx, message); err != nil && ctx.Err() != nil {
			return nil
		}
	}
}

// readLine reads one line from the terminal in raw mode.
func (c *chatter) readLine(ctx context.Context) (string, keyAction, error) {
	fd := os.Stdin.Fd()
	state, err := term.MakeRaw(fd)
	if err != nil {
		return "", keyInterrupt, fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	drv, err := input.NewReader(os.Stdin, os.Getenv("TERM"), 0)
	if err != nil {
		return "", keyInterrupt, fmt.Errorf("create input reader: %w", err)
	}
	defer drv.Close()

	line := &lineEditor{echo: c.out}
	for {
		if ctx.Err() != nil {
			return "", keyInterrupt, nil
		}

		evs, err := drv.ReadEvents()
		if err != nil {
			return "", keyInterrupt, err
		}

		for _, ev := range evs {
			kp, ok := ev.(input.KeyPressEvent)
			if !ok {
				continue
			}
			if action := line.key(kp.String(), kp.Text); action != keyNone {
				return line.String(), action, nil
			}
		}
	}
}

type keyAction int

const (
	keyNone keyAction = iota
	keySubmit
	keyHistory
	keyInterrupt
)

// lineEditor collects a single line of raw key presses and echoes them.
type lineEditor struct {
	buf  []rune
	echo io.Writer
}

// key applies one key press. name is the key's string form, e.g. "ctrl+h".
func (e *lineEditor) key(name, text string) keyAction {
	switch name {
	case "ctrl+c":
		return keyInterrupt
	case "ctrl+d":
		if len(e.buf) == 0 {
			return keyInterrupt
		}
	case "ctrl+h":
		fmt.Fprint(e.echo, "\r\033[K")
		return keyHistory
	case "enter":
		fmt.Fprint(e.echo, "\r\n")
		return keySubmit
	case "backspace":
		if n := len(e.buf); n > 0 {
			e.buf = e.buf[:n-1]
			fmt.Fprint(e.echo, "\b \b")
		}
	case "space":
		e.insert(" ")
	case "tab":
		e.insert("\t")
	default:
		if text != "" {
			e.insert(text)
		} else if len(name) == 1 && name[0] >= 32 && name[0] < 127 {
			e.insert(name)
		}
	}
	return keyNone
}

func (e *lineEditor) insert(s string) {
	e.buf = append(e.buf, []rune(s)...)
	fmt.Fprint(e.echo, s)
}

func (e *lineEditor) String() string {
	return string(e.buf)
}

func writeChatHistory(w io.Writer, turns []flows.ChatTurn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "No conversation history yet.")
		return
	}

	userStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#a78bfa")).Bold(true)
	assistantStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#34d399")).Bold(true)
	for _, turn := range turns {
		label := userStyle.Render("you")
		if turn.Role == flows.RoleAssistant {
			label = assistantStyle.Render("assistant")
		}
		fmt.Fprintf(w, "%s: %s\n", label, turn.Text)
	}
}
