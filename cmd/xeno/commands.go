package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/xenoscript/executor"
	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/lint"
	"github.com/chazu/xenoscript/loader"
	"github.com/chazu/xenoscript/session"
	"github.com/chazu/xenoscript/syntax"
)

// ---------------------------------------------------------------------------
// xeno run
// ---------------------------------------------------------------------------

var (
	runSave  bool
	runQuiet bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.xeno>...",
	Short: "Execute scripts into a namespace",
	Long: `Execute each file in order into one namespace. The namespace defaults
to the configured one; with --save the result is written to the store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runSave, "save", "s", false, "Save the namespace after running")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Only print failures")
}

func runRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ns := cfg.Project.Namespace
	if !cmd.Flags().Changed("namespace") && len(args) == 1 {
		ns = loader.Namespace(args[0])
	}
	sess := session.New(ns, cfg.Provenance(), st)
	sess.AllowRun = true

	out := cmd.OutOrStdout()
	failed := runFiles(cmd.Context(), sess, args, out, runQuiet)

	if runSave {
		if err := sess.Save(cmd.Context(), ns); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved namespace %s (%s)\n", ns, graph.Plural(sess.State.Graph.Len(), "node", "nodes"))
	}
	if failed > 0 {
		return fmt.Errorf("%s failed", graph.Plural(failed, "statement", "statements"))
	}
	return nil
}

// runFiles evaluates every file and prints each outcome. It returns the
// number of failed statements.
func runFiles(ctx context.Context, sess *session.Session, paths []string, out io.Writer, quiet bool) int {
	if ctx == nil {
		ctx = context.Background()
	}
	failed := 0
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		for _, o := range sess.EvalSource(ctx, string(src)) {
			if !o.Result.Success {
				failed++
				fmt.Fprintf(out, "%s:%d: %s\n", path, o.Line, o.Result.Output)
				continue
			}
			if !quiet && o.Result.Output != "" {
				fmt.Fprintln(out, o.Result.Output)
			}
		}
	}
	return failed
}

// ---------------------------------------------------------------------------
// xeno lint
// ---------------------------------------------------------------------------

var lintJSON bool

var lintCmd = &cobra.Command{
	Use:   "lint <file.xeno>...",
	Short: "Check scripts without executing them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintJSON, "json", false, "Output diagnostics as JSON")
}

// fileDiagnostic is a diagnostic with the file it came from.
type fileDiagnostic struct {
	File string `json:"file"`
	lint.Diagnostic
}

func runLint(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var all []fileDiagnostic
	errCount := 0
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		diags := lint.Lint(string(src), nil)
		for _, d := range diags {
			all = append(all, fileDiagnostic{File: path, Diagnostic: d})
			if d.Severity == lint.SeverityError {
				errCount++
			}
		}
	}

	if lintJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if all == nil {
			all = []fileDiagnostic{}
		}
		if err := enc.Encode(all); err != nil {
			return err
		}
	} else {
		for _, d := range all {
			fmt.Fprintf(out, "%s:%d:%d: %s: %s [%s]\n", d.File, d.Line, d.Column, d.Severity, d.Message, d.Rule)
		}
	}
	if errCount > 0 {
		return fmt.Errorf("%s", graph.Plural(errCount, "error", "errors"))
	}
	return nil
}

// ---------------------------------------------------------------------------
// xeno fmt
// ---------------------------------------------------------------------------

var (
	fmtWrite bool
	fmtCheck bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <file.xeno>...",
	Short: "Rewrite scripts in canonical form",
	Long: `Print each file in canonical form. With -w the file is rewritten in
place; with --check the command lists unformatted files and fails if any
exist. Statements carrying comments are left as written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "Write result to the source file")
	fmtCmd.Flags().BoolVar(&fmtCheck, "check", false, "Fail if any file is not formatted")
}

func runFmt(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	unformatted := 0
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		formatted, err := formatFile(string(src))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		switch {
		case fmtCheck:
			if formatted != string(src) {
				fmt.Fprintln(out, path)
				unformatted++
			}
		case fmtWrite:
			if formatted != string(src) {
				if err := os.WriteFile(path, []byte(formatted), 0644); err != nil {
					return err
				}
				log.Infof("formatted %s", path)
			}
		default:
			fmt.Fprint(out, formatted)
		}
	}
	if unformatted > 0 {
		return fmt.Errorf("%s not formatted", graph.Plural(unformatted, "file", "files"))
	}
	return nil
}

// formatFile formats every statement of src. Blank and comment lines
// between statements are kept; trailing blank lines collapse to one
// newline.
func formatFile(src string) (string, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")
	var out strings.Builder
	next := 1
	for _, b := range loader.Split(src) {
		for ; next < b.Line; next++ {
			out.WriteString(strings.TrimRight(lines[next-1], " \t"))
			out.WriteString("\n")
		}
		text := b.Text
		if !hasComment(text) {
			formatted, err := syntax.FormatSource(text)
			if err != nil {
				return "", fmt.Errorf("line %d: %w", b.Line, err)
			}
			text = formatted
		}
		out.WriteString(strings.TrimRight(text, " \t\n"))
		out.WriteString("\n")
		next = b.Line + strings.Count(b.Text, "\n") + 1
	}
	for ; next <= len(lines); next++ {
		out.WriteString(strings.TrimRight(lines[next-1], " \t"))
		out.WriteString("\n")
	}
	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// hasComment reports whether text has a # comment outside strings.
func hasComment(text string) bool {
	var quote rune
	escaped := false
	for _, r := range text {
		switch {
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// xeno project
// ---------------------------------------------------------------------------

var projectCmd = &cobra.Command{
	Use:   "project <file.xeno|namespace> <node> [projector]",
	Short: "Render a node with a projector",
	Long: `Render a node from a script (run into a scratch namespace) or from a
stored namespace. The projector defaults to task/list.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runProject,
}

func runProject(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	source, node := args[0], args[1]
	projName := "task/list"
	if len(args) == 3 {
		projName = args[2]
	}

	sess := session.New(loader.Namespace(source), cfg.Provenance(), st)
	if strings.HasSuffix(source, ".xeno") {
		sess.AllowRun = true
		if _, err := sess.Run(ctx, source); err != nil {
			return err
		}
	} else if err := sess.Load(ctx, source); err != nil {
		return err
	}

	res := executor.Execute(sess.State, fmt.Sprintf("%s -> %s", node, projName))
	if !res.Success {
		return fmt.Errorf("%s", res.Output)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	return nil
}
