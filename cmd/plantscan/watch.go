package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/plantscan/internal/application/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

var watchQuiet bool

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Analyze every image dropped into a folder",
	Long: `Watches DIR and submits each new image once it has stopped changing.
Files already in DIR when the watch starts are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireIdentity()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(args[0]); err != nil {
			return fmt.Errorf("failed to watch %s: %w", args[0], err)
		}
		if !watchQuiet {
			fmt.Printf("Watching %s (Ctrl-C to stop)\n", args[0])
		}

		d := newDebouncer(500*time.Millisecond, func(path string) {
			submitFile(ctx, a.Scans.Analyze, id, path)
		})
		defer d.Stop()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !isImageFile(event.Name) {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					d.Touch(event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				cliLog().WithError(err).Warn("watcher error")
			case <-ctx.Done():
				if !watchQuiet {
					fmt.Println("\nWatch stopped")
				}
				return nil
			}
		}
	},
}

type analyzeFunc func(context.Context, scans.CapturedImage, scans.Identity) (*scans.ScanRecord, error)

func submitFile(ctx context.Context, analyze analyzeFunc, id scans.Identity, path string) {
	log := cliLog().WithField("file", path)

	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).Warn("cannot open file")
		return
	}
	defer f.Close()

	img, err := capture.ReadImage(filepath.Base(path), f)
	if err != nil {
		log.WithError(err).Warn("skipping file")
		return
	}
	rec, err := analyze(ctx, img, id)
	if err != nil {
		log.WithError(describePipelineError(err)).Error("scan failed")
		return
	}
	if watchQuiet {
		return
	}
	fmt.Printf("%s  %s  %s  %s\n", filepath.Base(path), rec.ID, orDash(rec.Result.Disease), confidence(rec.Result.Confidence))
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true, ".gif": true, ".bmp": true,
}

// isImageFile filters by extension and skips hidden and editor temp files.
func isImageFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	return imageExts[strings.ToLower(filepath.Ext(base))]
}

// debouncer fires fn once per path after the path has been quiet for wait.
type debouncer struct {
	wait time.Duration
	fn   func(string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func newDebouncer(wait time.Duration, fn func(string)) *debouncer {
	return &debouncer{wait: wait, fn: fn, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) Touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.wait, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[path] == t {
			delete(d.timers, path)
		}
		d.mu.Unlock()
		d.fn(path)
	})
	d.timers[path] = t
}

// Stop waits for submissions already firing and drops pending ones.
func (d *debouncer) Stop() {
	d.mu.Lock()
	for p, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, p)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func init() {
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "Only log failures")
}
