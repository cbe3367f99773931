package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/plantscan/internal/app"
	"github.com/bryanwahyu/plantscan/internal/application/capture"
	domaincapture "github.com/bryanwahyu/plantscan/internal/domain/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Take a photo with the configured camera and analyze it",
	Long: `Opens the environment-facing camera (falling back to any other configured
camera), waits for Enter to take a still, then asks whether to analyze or retake.
Ctrl-C releases the camera.`,
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

		ctrl := capture.NewController(app.NewCamera(a.Config.Camera), cliLog())
		defer ctrl.Close()

		lines := readLines(ctx)
		for {
			if err := ctrl.Start(ctx); err != nil {
				return fmt.Errorf("%w (try `plantscan scan FILE` instead)", err)
			}
			img, ok, err := takeStill(ctx, ctrl, lines, os.Stdout)
			if err != nil {
				return err
			}
			if !ok {
				return ctrl.Close()
			}
			fmt.Printf("Captured %s, %d bytes. a = analyze, r = retake, q = quit\n", img.ContentType, len(img.Data))

			switch answer(ctx, lines) {
			case "a":
				rec, err := a.Scans.Analyze(ctx, img, id)
				if err != nil {
					return describePipelineError(err)
				}
				return printRecord(rec)
			case "r":
				if err := ctrl.Retake(); err != nil {
					return err
				}
			default:
				return nil
			}
		}
	},
}

// takeStill waits for Enter and captures a still. A failed frame keeps the
// stream live and prompts again; ok is false when the user quits.
func takeStill(ctx context.Context, ctrl *capture.Controller, lines <-chan string, out io.Writer) (scans.CapturedImage, bool, error) {
	for {
		fmt.Fprintln(out, "Camera ready. Enter = capture, q = quit")
		if !waitFor(ctx, lines, "") {
			return scans.CapturedImage{}, false, nil
		}
		img, err := ctrl.Capture(ctx)
		if err == nil {
			return img, true, nil
		}
		if ctrl.State() != domaincapture.StateCapturing {
			return scans.CapturedImage{}, false, err
		}
		fmt.Fprintf(out, "capture failed: %v\n", err)
	}
}

// readLines feeds stdin lines until ctx ends.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case out <- strings.TrimSpace(strings.ToLower(sc.Text())):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// waitFor returns true when want is typed; q, EOF or Ctrl-C return false.
func waitFor(ctx context.Context, lines <-chan string, want string) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case l, ok := <-lines:
			if !ok || l == "q" {
				return false
			}
			if l == want {
				return true
			}
		}
	}
}

func answer(ctx context.Context, lines <-chan string) string {
	select {
	case <-ctx.Done():
		return "q"
	case l, ok := <-lines:
		if !ok {
			return "q"
		}
		return l
	}
}
