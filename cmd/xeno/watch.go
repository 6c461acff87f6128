package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/chazu/xenoscript/graph"
	"github.com/chazu/xenoscript/loader"
	"github.com/chazu/xenoscript/session"
	"github.com/chazu/xenoscript/store"
)

var (
	watchSave     bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <file.xeno>",
	Short: "Re-run a script into a fresh namespace whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchSave, "save", "s", false, "Save the namespace after each successful run")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "Wait this long after a change before re-running")
}

func runWatch(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	w := &watcher{
		path:     path,
		debounce: watchDebounce,
		out:      cmd.OutOrStdout(),
		run: func() {
			rerun(ctx, path, st, cmd.OutOrStdout())
		},
	}
	return w.watch(ctx)
}

// rerun evaluates path into a fresh namespace and reports the outcome.
func rerun(ctx context.Context, path string, st store.Store, out io.Writer) {
	ns := loader.Namespace(path)
	sess := session.New(ns, cfg.Provenance(), st)
	sess.AllowRun = true
	sess.Dir = filepath.Dir(path)

	fmt.Fprintf(out, "── %s %s\n", time.Now().Format("15:04:05"), filepath.Base(path))
	failed := runFiles(ctx, sess, []string{path}, out, true)
	fmt.Fprintf(out, "%s, %s\n",
		graph.Plural(sess.State.Graph.Len(), "node", "nodes"),
		graph.Plural(failed, "failure", "failures"))
	if watchSave && failed == 0 {
		if err := sess.Save(ctx, ns); err != nil {
			fmt.Fprintf(out, "save failed: %v\n", err)
		}
	}
}

// watcher calls run once at start and again after each burst of writes to
// path. The directory is watched so editors that replace the file on save
// are still seen.
type watcher struct {
	path     string
	debounce time.Duration
	out      io.Writer
	run      func()
}

func (w *watcher) watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	log.Infof("watching %s", w.path)

	w.run()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debugf("change: %s", event)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.run()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warningf("watch error: %s", err)
		}
	}
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	return string(data), err
}
