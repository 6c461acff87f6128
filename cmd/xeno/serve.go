package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/xenoscript/server"
)

var (
	serveAddr     string
	serveTTL      time.Duration
	serveAutosave bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions over Connect (HTTP/JSON)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from xeno.toml)")
	serveCmd.Flags().DurationVar(&serveTTL, "session-ttl", 30*time.Minute, "Close sessions idle this long (0 keeps them)")
	serveCmd.Flags().BoolVar(&serveAutosave, "autosave", false, "Save sessions to the store when they expire")
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	interval := serveTTL / 6
	if interval < time.Second {
		interval = time.Second
	}
	srv := server.New(st,
		server.WithProvenance(cfg.Provenance()),
		server.WithSessionTTL(interval, serveTTL),
		server.WithAutosave(serveAutosave),
	)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Notice("shutting down")
		srv.Stop()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "XenoScript server listening on %s\n", addr)
	return srv.ListenAndServe(addr)
}

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the language server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.NewLSP(cfg.Provenance()).Run()
	},
}

var (
	execServer string
	execLoad   bool
	execSave   bool
)

var execCmd = &cobra.Command{
	Use:   "exec <statements>",
	Short: "Execute statements on a running server",
	Long: `Open a session on a running xeno server, execute the statements (all
arguments joined by newlines, or stdin when the only argument is "-"), print
the results and close the session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVar(&execServer, "server", "", "Server URL (default http:// plus the configured address)")
	execCmd.Flags().BoolVar(&execLoad, "load", false, "Load the namespace from the server's store first")
	execCmd.Flags().BoolVar(&execSave, "save", false, "Save the namespace when done")
}

func runExec(cmd *cobra.Command, args []string) error {
	src := strings.Join(args, "\n")
	if len(args) == 1 && args[0] == "-" {
		data, err := readAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		src = data
	}
	url := execServer
	if url == "" {
		url = "http://" + cfg.Server.Addr
	}

	ctx := cmd.Context()
	c := server.NewClient(http.DefaultClient, url)
	opened, err := c.OpenSession(ctx, &server.OpenSessionRequest{
		Namespace:  cfg.Project.Namespace,
		Provenance: cfg.Session.Provenance,
		Load:       execLoad,
	})
	if err != nil {
		return err
	}

	resp, err := c.Execute(ctx, &server.ExecuteRequest{SessionID: opened.SessionID, Source: src})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	exited := false
	for _, o := range resp.Results {
		if o.Result.Output != "" {
			fmt.Fprintln(out, o.Result.Output)
		}
		exited = exited || o.Result.ShouldExit
	}
	if !exited {
		if _, err := c.CloseSession(ctx, &server.CloseSessionRequest{SessionID: opened.SessionID, Save: execSave}); err != nil {
			return err
		}
	}
	if !resp.Success {
		return fmt.Errorf("some statements failed")
	}
	return nil
}
