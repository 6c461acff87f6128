package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/loader"
	"github.com/chazu/xenoscript/store"
)

var lsCmd = &cobra.Command{
	Use:   "ls [namespace]",
	Short: "List stored namespaces, or the nodes of one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		g, err := st.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s)\n", g.Namespace(), graph.Plural(g.Len(), "node", "nodes"))
		for _, n := range g.Nodes() {
			fmt.Fprintf(out, "  %s %-24s %-10s %s\n", n.Provenance.Glyph(), n.Name, n.Kind.Short(),
				graph.Plural(len(n.Children), "child", "children"))
		}
		return nil
	}

	names, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

var rmCmd = &cobra.Command{
	Use:   "rm <namespace>...",
	Short: "Delete stored namespaces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		for _, ns := range args {
			if err := st.Delete(cmd.Context(), ns); err != nil {
				return fmt.Errorf("rm %s: %w", ns, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", ns)
		}
		return nil
	},
}

// Export formats.
const (
	formatJSON  = "json"
	formatImage = "image"
)

var (
	exportOutput string
	exportFormat string
	importAs     string
)

var exportCmd = &cobra.Command{
	Use:   "export <namespace>",
	Short: "Write a stored namespace as a JSON document or a binary image",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store a namespace from a JSON document or image",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", formatJSON, "Format: json or image")
	importCmd.Flags().StringVar(&importAs, "as", "", "Store under this namespace instead of the document's")
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	g, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	var data []byte
	switch exportFormat {
	case formatJSON:
		data, err = json.MarshalIndent(g, "", "  ")
		data = append(data, '\n')
	case formatImage:
		data, err = store.EncodeImage(g)
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		return err
	}
	log.Infof("exported %s to %s (%d bytes, blake3 %s)", args[0], exportOutput, len(data), store.Digest(data)[:12])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	g, err := decodeGraph(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	ns := importAs
	if ns == "" {
		ns = g.Namespace()
	}
	if ns == "" {
		ns = loader.Namespace(args[0])
	}
	if ns != g.Namespace() {
		doc := g.Document()
		doc.Namespace = ns
		if g, err = graph.FromDocument(doc); err != nil {
			return err
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Save(cmd.Context(), g); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s)\n", ns, graph.Plural(g.Len(), "node", "nodes"))
	return nil
}

// decodeGraph accepts either an image or a JSON document.
func decodeGraph(data []byte) (*graph.Graph, error) {
	if store.IsImage(data) {
		return store.DecodeImage(data)
	}
	g := graph.New("")
	if err := json.Unmarshal(data, g); err != nil {
		return nil, err
	}
	return g, nil
}
