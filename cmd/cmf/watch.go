package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/coordkit/manifest/internal/engine"
	"github.com/coordkit/manifest/internal/tracker"
	"github.com/coordkit/manifest/internal/ui"
	"github.com/coordkit/manifest/internal/watch"
)

var (
	watchLogFile  string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch sources and keep the manifest in sync",
	Long: `Watch the task log and the spec trees for changes.

A task log write triggers a full task sync pass; a spec document
addition or edit triggers a full spec sync pass. File-change
attributions arriving on stdin are debounced: a burst of changes is
flushed as a single manifest write once the quiet period elapses.

With --log-file, activity is written to a size-rotated log file
instead of stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stderr, "[watch] ", log.LstdFlags)
		if watchLogFile != "" {
			logger = log.New(&lumberjack.Logger{
				Filename:   watchLogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
			}, "[watch] ", log.LstdFlags)
		}

		eng := newEngine()
		batcher := watch.NewBatcher(watchDebounce, nil,
			tracker.New(newStore(), logger).TrackBatch, logger)

		w, err := watch.NewWatcher(eng, logger)
		if err != nil {
			return err
		}
		err = w.Start(func(src watch.Source, stats engine.Stats) {
			logger.Printf("Synced %s: added=%d updated=%d removed=%d",
				src, stats.Added, stats.Updated, stats.Removed)
		})
		if err != nil {
			return err
		}

		// File-change attributions arrive as JSON lines on stdin, e.g.
		// {"path":"src/auth.ts","taskId":"bd-a1","isNew":true}
		go feedBatcher(os.Stdin, batcher, logger)

		fmt.Printf("%s Watching %s and %v (ctrl-c to stop)\n",
			ui.RenderAccent("👁"), viper.GetString("task_log"), eng.SpecDirs())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		// Drain any pending debounced batch before stopping; Stop on
		// its own does not flush.
		if err := batcher.Flush(); err != nil {
			logger.Printf("ERROR: final flush failed: %v", err)
		}
		return w.Stop()
	},
}

// feedBatcher decodes newline-delimited change records from r into the
// batcher until EOF. Lines that fail to decode or name no path are
// logged and skipped.
func feedBatcher(r io.Reader, b *watch.Batcher, logger *log.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ch tracker.Change
		if err := json.Unmarshal([]byte(line), &ch); err != nil {
			logger.Printf("WARNING: skipping malformed change record: %v", err)
			continue
		}
		if ch.Path == "" {
			logger.Printf("WARNING: skipping change record with empty path")
			continue
		}
		b.Add(ch)
	}
	if err := scanner.Err(); err != nil {
		logger.Printf("ERROR: reading change records: %v", err)
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "rotate activity logs to this file")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "file-change debounce delay")
	rootCmd.AddCommand(watchCmd)
}
