package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the document collection",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		records := a.store.List()
		if len(records) == 0 {
			fmt.Println("No documents uploaded.")
			return nil
		}
		for _, record := range records {
			fmt.Printf("%s  %s  %s  %d chunks  %s\n",
				record.DocID, record.DisplayName, record.Format,
				record.ChunkCount, record.UploadedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		if !a.store.Delete(cmd.Context(), args[0]) {
			return fmt.Errorf("document %s not found or could not be removed", args[0])
		}
		fmt.Printf("Deleted %s.\n", args[0])
		return nil
	},
}

var docsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		stats := a.store.AggregateStats()
		fmt.Printf("documents: %d\n", stats.TotalDocuments)
		fmt.Printf("chunks:    %d (avg %.1f per document)\n", stats.TotalChunks, stats.AvgChunks)
		fmt.Printf("bytes:     %d\n", stats.TotalBytes)
		for format, count := range stats.FormatCounts {
			fmt.Printf("  %s: %d\n", format, count)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload a document into the collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		record, err := a.store.Upload(cmd.Context(), args[0], name)
		if err != nil {
			return fmt.Errorf("upload %s: %w", args[0], err)
		}
		fmt.Printf("Uploaded '%s' (ID: %s), %d chunks indexed.\n",
			record.DisplayName, record.DocID, record.ChunkCount)
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [doc-id]",
	Short: "Summarize an uploaded document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		summary, err := a.engine.Summarize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare [doc-id] [doc-id]...",
	Short: "Compare two or more uploaded documents",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		aspect, _ := cmd.Flags().GetString("aspect")
		comparison, err := a.engine.Compare(cmd.Context(), args, aspect)
		if err != nil {
			return err
		}
		fmt.Println(comparison)
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("name", "", "display name for the document")
	compareCmd.Flags().String("aspect", "", "aspect to compare the documents on")
	docsCmd.AddCommand(docsListCmd, docsDeleteCmd, docsStatsCmd)
	rootCmd.AddCommand(docsCmd, uploadCmd, summarizeCmd, compareCmd)
}
