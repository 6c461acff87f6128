package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chazu/xenoscript/executor"
	"github.com/chazu/xenoscript/loader"
	"github.com/chazu/xenoscript/session"
)

var replLoad bool

var replCmd = &cobra.Command{
	Use:   "repl [file]",
	Short: "Start an interactive session, optionally running a file first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runREPLCmd,
}

func init() {
	replCmd.Flags().BoolVarP(&replLoad, "load", "l", false, "Load the namespace from the store before starting")
	rootCmd.Flags().BoolVarP(&replLoad, "load", "l", false, "Load the namespace from the store before starting")
}

// styles colors REPL output when stdout is a terminal.
type styles struct {
	enabled bool
	prompt  lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	success lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(f *os.File) styles {
	return styles{
		enabled: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()),
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		dim:     lipgloss.NewStyle().Faint(true),
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

// result formats one statement's outcome line by line.
func (s styles) result(res executor.Result) string {
	if res.Output == executor.ClearScreen {
		if s.enabled {
			return res.Output
		}
		return ""
	}
	lines := strings.Split(res.Output, "\n")
	for i, line := range lines {
		switch {
		case !res.Success:
			lines[i] = s.render(s.failure, line)
		case strings.HasPrefix(line, "⚠"):
			lines[i] = s.render(s.warning, line)
		case strings.HasPrefix(line, "✓"):
			lines[i] = s.render(s.success, line)
		case strings.HasPrefix(line, "["):
			lines[i] = s.render(s.dim, line)
		}
	}
	return strings.Join(lines, "\n")
}

func runREPLCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess := session.New(cfg.Project.Namespace, cfg.Provenance(), st)
	sess.AllowRun = true
	sess.Dir = cfg.Dir

	out := cmd.OutOrStdout()
	sty := newStyles(os.Stdout)
	if replLoad {
		if err := sess.Load(ctx, cfg.Project.Namespace); err != nil {
			return err
		}
	}
	if len(args) == 1 {
		msg, err := sess.Run(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg)
	}
	return repl(ctx, sess, cmd.InOrStdin(), out, sty)
}

// repl reads statements from in until EOF or exit. Lines accumulate while
// brackets or strings are open.
func repl(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer, sty styles) error {
	fmt.Fprintf(out, "XenoScript (namespace %s, type help or exit)\n", sess.Namespace())

	scanner := bufio.NewScanner(in)
	var buf strings.Builder
	prompt := func() {
		p := sess.Namespace() + "> "
		if buf.Len() > 0 {
			p = strings.Repeat(".", len(sess.Namespace())) + "> "
		}
		fmt.Fprint(out, sty.render(sty.prompt, p))
	}

	prompt()
	for scanner.Scan() {
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(scanner.Text())
		if loader.Incomplete(buf.String()) {
			prompt()
			continue
		}

		input := buf.String()
		buf.Reset()
		if strings.TrimSpace(input) == "" {
			prompt()
			continue
		}

		res := sess.Eval(ctx, input)
		if text := sty.result(res); text != "" {
			fmt.Fprintln(out, text)
		}
		if res.ShouldExit {
			return nil
		}
		prompt()
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
