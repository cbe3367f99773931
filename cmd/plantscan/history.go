package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/plantscan/internal/domain/scans"
	"github.com/bryanwahyu/plantscan/internal/middleware"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past scans",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cursor, _ := cmd.Flags().GetString("cursor")

		id, err := requireIdentity()
		if err != nil {
			return err
		}
		var before *scans.Cursor
		if cursor != "" {
			if before, err = scans.ParseCursor(cursor); err != nil {
				return err
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.Scans.List(ctx, id, middleware.ValidateLimit(limit), before)
		if err != nil {
			return err
		}

		if wantJSON() {
			out := struct {
				Data       []*scans.ScanRecord `json:"data"`
				NextCursor string              `json:"next_cursor,omitempty"`
			}{Data: page.Data}
			if out.Data == nil {
				out.Data = []*scans.ScanRecord{}
			}
			if page.NextCursor != nil {
				out.NextCursor = page.NextCursor.Encode()
			}
			return printJSON(out)
		}

		if len(page.Data) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTAKEN\tDISEASE\tCONFIDENCE")
		for _, r := range page.Data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.ID,
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				orDash(r.Result.Disease),
				confidence(r.Result.Confidence),
			)
		}
		w.Flush()
		if page.NextCursor != nil {
			fmt.Printf("\nMore: plantscan history list --cursor %s\n", page.NextCursor.Encode())
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one scan",
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

		rec, err := a.Scans.Get(ctx, id, scans.ScanID(args[0]))
		if err != nil {
			return err
		}
		return printRecord(rec)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a scan and its image",
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

		if err := a.Scans.Delete(ctx, id, scans.ScanID(args[0])); err != nil {
			return err
		}
		fmt.Printf("Deleted scan %s\n", args[0])
		return nil
	},
}

var historySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize recent scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		days = middleware.ValidateDays(days)

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

		sum, err := a.Scans.Summary(ctx, id, days)
		if err != nil {
			return err
		}
		if wantJSON() {
			return printJSON(struct {
				Days int `json:"days"`
				scans.Summary
			}{days, sum})
		}
		fmt.Printf("Last %d days\n", days)
		fmt.Printf("Scans:          %d\n", sum.Total)
		fmt.Printf("Diseased:       %d\n", sum.Diseased)
		fmt.Printf("Healthy:        %d\n", sum.Healthy)
		fmt.Printf("Avg confidence: %s\n", confidence(sum.AvgConfidence))
		return nil
	},
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List failed scan attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

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

		list, err := a.Scans.ListFailures(ctx, id, middleware.ValidateLimit(limit))
		if err != nil {
			return err
		}
		if wantJSON() {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No failures recorded.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tWHEN\tPHASE\tMESSAGE\tORPHANED IMAGE")
		for _, f := range list {
			img := f.ImageURL
			if img == "" {
				img = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				f.ID, f.CreatedAt.Local().Format("2006-01-02 15:04:05"), f.Phase, f.Message, img)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historySummaryCmd)

	historyListCmd.Flags().IntP("limit", "n", 20, "Maximum number of scans to show")
	historyListCmd.Flags().String("cursor", "", "Continue after a previous page")
	historySummaryCmd.Flags().IntP("days", "d", 30, "Window in days")
	failuresCmd.Flags().IntP("limit", "n", 20, "Maximum number of failures to show")
}
