package assistant

import (
	"fmt"
	"strings"

	"github.com/lmoretti/aide/docstore"
)

func formatUnreadCount(total int, byCategory map[string]int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You have %d unread emails.\n", total)
	for _, category := range []string{"primary", "social", "promotions", "updates"} {
		if count := byCategory[category]; count > 0 {
			fmt.Fprintf(&sb, "- %s: %d\n", category, count)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatEmails(title string, emails []map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", title)
	for _, email := range emails {
		marker := " "
		if unread, _ := email["unread"].(bool); unread {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %v - %v (%v)\n", marker, email["from"], email["subject"], email["date"])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatIssues(title string, items []map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(&sb, "- #%v %v (%v, updated %v)\n",
			item["number"], item["title"], item["repository"], item["updated_at"])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCommits(commits []map[string]any) string {
	var sb strings.Builder
	sb.WriteString("Recent commits:\n")
	for _, commit := range commits {
		fmt.Fprintf(&sb, "- %v %v (%v, %v)\n",
			commit["sha"], commit["message"], commit["author"], commit["date"])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatRepoStats(stats map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v", stats["full_name"])
	if description, _ := stats["description"].(string); description != "" {
		fmt.Fprintf(&sb, " - %s", description)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- stars: %v, forks: %v, open issues: %v\n",
		stats["stars"], stats["forks"], stats["open_issues"])
	fmt.Fprintf(&sb, "- language: %v, last push: %v", stats["language"], stats["pushed_at"])
	return sb.String()
}

func formatEvents(title string, events []map[string]any) string {
	if len(events) == 0 {
		return title + ": no events."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", title)
	for _, event := range events {
		sb.WriteString(formatEvent(event))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatEvent(event map[string]any) string {
	line := fmt.Sprintf("- %v", event["summary"])
	if allDay, _ := event["all_day"].(bool); allDay {
		line += fmt.Sprintf(" (all day, %v)", event["start"])
	} else {
		line += fmt.Sprintf(" (%v - %v)", event["start"], event["end"])
	}
	if location, _ := event["location"].(string); location != "" {
		line += " at " + location
	}
	return line
}

func formatTimeSlots(title string, slots []map[string]any) string {
	if len(slots) == 0 {
		return title + ": none."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", title)
	for _, slot := range slots {
		fmt.Fprintf(&sb, "- %v to %v\n", slot["start"], slot["end"])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatFiles(title string, files []map[string]any) string {
	if len(files) == 0 {
		return title + ": none found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", title)
	for _, file := range files {
		fmt.Fprintf(&sb, "- %v (modified %v", file["name"], file["modified"])
		if size, _ := file["size"].(int64); size > 0 {
			fmt.Fprintf(&sb, ", %s", formatBytes(size))
		}
		sb.WriteString(")\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDocuments(records []docstore.Record, stats docstore.Stats) string {
	if len(records) == 0 {
		return "No documents have been uploaded yet. Use 'upload <path>' to add one."
	}
	var sb strings.Builder
	sb.WriteString("Your documents:\n")
	for _, record := range records {
		fmt.Fprintf(&sb, "- %s (ID: %s) - %s, %d chunks, uploaded %s\n",
			record.DisplayName, record.DocID, record.Format, record.ChunkCount,
			record.UploadedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "Total: %d documents, %d chunks, %s",
		stats.TotalDocuments, stats.TotalChunks, formatBytes(stats.TotalBytes))
	return sb.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
