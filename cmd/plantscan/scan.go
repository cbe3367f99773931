package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/plantscan/internal/application/capture"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
)

var scanCmd = &cobra.Command{
	Use:   "scan FILE",
	Short: "Upload a photo and print its diagnosis",
	Args:  cobra.ExactArgs(1),
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

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		src := capture.NewFileSource("")
		defer src.Close()

		preview, err := src.Select(filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		if !wantJSON() {
			fmt.Printf("Preview: %s (%s, %d bytes)\n", preview.Path, preview.Image.ContentType, len(preview.Image.Data))
		}

		rec, err := a.Scans.Analyze(ctx, preview.Image, id)
		if err != nil {
			return describePipelineError(err)
		}
		return printRecord(rec)
	},
}

// describePipelineError adds what was left behind to the message.
func describePipelineError(err error) error {
	var pe *scans.PipelineError
	if errors.As(err, &pe) && pe.Image != nil {
		return fmt.Errorf("%w (image kept at %s)", err, pe.Image.URL)
	}
	return err
}

func printRecord(rec *scans.ScanRecord) error {
	if wantJSON() {
		return printJSON(rec)
	}
	fmt.Printf("Scan:            %s\n", rec.ID)
	fmt.Printf("Taken:           %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Image:           %s\n", rec.Image.URL)
	fmt.Printf("Disease:         %s\n", orDash(rec.Result.Disease))
	fmt.Printf("Confidence:      %s\n", confidence(rec.Result.Confidence))
	fmt.Printf("Diagnosis:       %s\n", orDash(rec.Result.Diagnosis))
	fmt.Printf("Recommendations: %s\n", orDash(rec.Result.Recommendations))
	return nil
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func confidence(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *c*100)
}
