// Command xeno is the XenoScript CLI: an interactive REPL plus tools to
// run, lint, format, project, store and serve .xeno graphs.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/manifest"
	"github.com/chazu/xenoscript/store"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("xeno.cli")

// Global flags. Each overrides the matching xeno.toml value when set.
var (
	verbosity      int
	logFile        string
	namespaceFlag  string
	provenanceFlag string
	backendFlag    string
	storePathFlag  string
)

// cfg is the resolved configuration, set by setup before any command runs.
var cfg *manifest.Manifest

var rootCmd = &cobra.Command{
	Use:   "xeno",
	Short: "XenoScript: declare, evolve and project convergence graphs",
	Long: `XenoScript is a small language for building graphs of intentions.
Without a subcommand xeno starts an interactive session.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runREPLCmd,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	flags.StringVarP(&namespaceFlag, "namespace", "n", "", "Namespace to work in")
	flags.StringVar(&provenanceFlag, "provenance", "", "Provenance for new nodes (organic, synthetic, hybrid)")
	flags.StringVar(&backendFlag, "store", "", "Store backend (file, sqlite)")
	flags.StringVar(&storePathFlag, "store-path", "", "Store directory (file) or database (sqlite)")

	rootCmd.AddCommand(replCmd, runCmd, lintCmd, fmtCmd, projectCmd,
		lsCmd, rmCmd, exportCmd, importCmd,
		serveCmd, lspCmd, execCmd, watchCmd)
}

// setup resolves configuration: xeno.toml found from the working
// directory (or defaults), then flag overrides, then logging.
func setup(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return err
	}
	if m == nil {
		m = manifest.Default(wd)
	}

	if namespaceFlag != "" {
		m.Project.Namespace = namespaceFlag
	}
	if provenanceFlag != "" {
		if p := graph.ParseProvenance(provenanceFlag); p == graph.Unknown && provenanceFlag != string(graph.Unknown) {
			return fmt.Errorf("unknown provenance %q", provenanceFlag)
		}
		m.Session.Provenance = provenanceFlag
	}
	if backendFlag != "" {
		m.Store.Backend = backendFlag
		if storePathFlag == "" && backendFlag == store.BackendSQLite && m.Store.Path == manifest.DefaultStorePath {
			m.Store.Path = filepath.Join(manifest.DefaultStorePath, "xeno.db")
		}
	}
	if storePathFlag != "" {
		m.Store.Path = storePathFlag
	}
	if manifest.IsReservedNamespace(m.Project.Namespace) {
		return fmt.Errorf("namespace %q is a reserved word", m.Project.Namespace)
	}

	level := verbosity
	if level == 0 {
		level = m.Log.Verbosity
	}
	path := logFile
	if path == "" && m.Log.File != "" {
		path = m.Log.File
	}
	if path != "" {
		commonlog.Configure(level, &path)
	} else {
		commonlog.Configure(level, nil)
	}

	cfg = m
	log.Debugf("config: namespace=%s store=%s:%s", m.Project.Namespace, m.Store.Backend, m.StorePath())
	return nil
}

// openStore opens the configured store.
func openStore() (store.Store, error) {
	st, err := store.Open(cfg.Store.Backend, cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open %s store at %s: %w", cfg.Store.Backend, cfg.StorePath(), err)
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
