package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/intent"
	"github.com/lmoretti/aide/llm"
)

const summaryMaxTokens = 300

func (a *Assistant) handleEmail(ctx context.Context, in intent.Intent) string {
	if a.email == nil {
		return "Email access is not configured. Set a Google access token to enable it."
	}
	limit := intParam(in.Parameters, "limit", 10)

	switch in.Action {
	case "get_unread_count":
		total, byCategory, err := a.email.UnreadCount(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		return formatUnreadCount(total, byCategory)

	case "get_emails_from_sender", "summarize_emails_from_sender":
		sender := stringParam(in.Parameters, "sender")
		if sender == "" {
			return "Whose emails should I look at? Please include a name or address."
		}
		emails, err := a.email.FromSender(ctx, sender, limit)
		if err != nil {
			return a.serviceError(err)
		}
		if len(emails) == 0 {
			return fmt.Sprintf("No emails from %s found.", sender)
		}
		if in.Action == "summarize_emails_from_sender" {
			return a.summarizeEmails(ctx, sender, emails)
		}
		return formatEmails(fmt.Sprintf("Emails from %s", sender), emails)

	case "get_urgent_emails":
		emails, err := a.email.Urgent(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		if len(emails) == 0 {
			return "No urgent emails. You're all caught up."
		}
		return formatEmails("Urgent emails", emails)

	case "search_emails":
		term := stringParam(in.Parameters, "search_term")
		if term == "" {
			return "What should I search your emails for?"
		}
		emails, err := a.email.Search(ctx, term, limit)
		if err != nil {
			return a.serviceError(err)
		}
		if len(emails) == 0 {
			return fmt.Sprintf("No emails matching %q found.", term)
		}
		return formatEmails(fmt.Sprintf("Emails matching %q", term), emails)

	default: // get_recent_emails
		emails, err := a.email.Recent(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		if len(emails) == 0 {
			return "Your inbox is empty."
		}
		return formatEmails("Recent emails", emails)
	}
}

func (a *Assistant) summarizeEmails(ctx context.Context, sender string, emails []map[string]any) string {
	var sb strings.Builder
	for _, email := range emails {
		fmt.Fprintf(&sb, "Subject: %v\nSnippet: %v\n\n", email["subject"], email["snippet"])
	}
	prompt := fmt.Sprintf("Summarize these emails from %s in a few sentences:\n\n%s",
		sender, sb.String())
	summary, _ := llm.Prompt(ctx, a.llm, prompt, summaryMaxTokens)
	return summary
}

func (a *Assistant) handleSourceControl(ctx context.Context, in intent.Intent) string {
	if a.sources == nil {
		return "Source control access is not configured. Set a GitHub token and repository to enable it."
	}
	limit := intParam(in.Parameters, "limit", 10)

	switch in.Action {
	case "get_prs_to_review":
		items, err := a.sources.PullRequestsToReview(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		if len(items) == 0 {
			return "No pull requests are waiting for your review."
		}
		return formatIssues("Pull requests to review", items)

	case "get_my_prs":
		items, err := a.sources.MyPullRequests(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		if len(items) == 0 {
			return "You have no open pull requests."
		}
		return formatIssues("Your open pull requests", items)

	case "get_assigned_issues":
		items, err := a.sources.AssignedIssues(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		if len(items) == 0 {
			return "No open issues are assigned to you."
		}
		return formatIssues("Issues assigned to you", items)

	case "get_recent_commits":
		commits, err := a.sources.RecentCommits(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		if len(commits) == 0 {
			return "No recent commits found."
		}
		return formatCommits(commits)

	case "get_repo_stats":
		stats, err := a.sources.RepoStats(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		return formatRepoStats(stats)

	default: // get_activity_summary
		return a.activitySummary(ctx)
	}
}

// activitySummary stitches commits, reviews and issues into one report,
// tolerating failure of any single call.
func (a *Assistant) activitySummary(ctx context.Context) string {
	var sections []string

	if commits, err := a.sources.RecentCommits(ctx, 5); err != nil {
		a.logger.Printf("activity summary: commits: %v", err)
	} else if len(commits) > 0 {
		sections = append(sections, formatCommits(commits))
	}

	if prs, err := a.sources.PullRequestsToReview(ctx); err != nil {
		a.logger.Printf("activity summary: reviews: %v", err)
	} else if len(prs) > 0 {
		sections = append(sections, formatIssues("Pull requests to review", prs))
	}

	if issues, err := a.sources.AssignedIssues(ctx); err != nil {
		a.logger.Printf("activity summary: issues: %v", err)
	} else if len(issues) > 0 {
		sections = append(sections, formatIssues("Issues assigned to you", issues))
	}

	if len(sections) == 0 {
		return "No recent repository activity to report."
	}
	return strings.Join(sections, "\n")
}

func (a *Assistant) handleCalendar(ctx context.Context, in intent.Intent) string {
	if a.cal == nil {
		return "Calendar access is not configured. Set a Google access token to enable it."
	}

	switch in.Action {
	case "get_tomorrow_schedule":
		events, err := a.cal.TomorrowSchedule(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		return formatEvents("Tomorrow's schedule", events)

	case "get_week_schedule":
		events, err := a.cal.WeekSchedule(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		return formatEvents("This week's schedule", events)

	case "get_next_meeting":
		event, err := a.cal.NextEvent(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		if event == nil {
			return "You have no upcoming meetings."
		}
		return "Next meeting:\n" + formatEvent(event)

	case "get_free_time":
		slots, err := a.cal.FreeTime(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		return formatTimeSlots("Free slots today", slots)

	case "get_busy_times":
		slots, err := a.cal.BusyTimes(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		return formatTimeSlots("Busy today", slots)

	default: // get_today_schedule
		events, err := a.cal.TodaySchedule(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		return formatEvents("Today's schedule", events)
	}
}

func (a *Assistant) handleDocuments(ctx context.Context, in intent.Intent) string {
	if a.store == nil || a.engine == nil {
		return "The document store is not available."
	}

	switch in.Action {
	case "list_documents":
		return formatDocuments(a.store.List(), a.store.AggregateStats())

	case "upload_document":
		path := stringParam(in.Parameters, "file_path")
		if path == "" {
			return "Which file should I upload? Please include the file path."
		}
		record, err := a.store.Upload(ctx, path, "")
		if err != nil {
			return uploadErrorText(path, err)
		}
		return fmt.Sprintf("Uploaded '%s' (ID: %s), %d chunks indexed.",
			record.DisplayName, record.DocID, record.ChunkCount)

	case "delete_document":
		docID := stringParam(in.Parameters, "doc_id")
		if docID == "" {
			return "Which document should I delete? Please include its ID."
		}
		if !a.store.Delete(ctx, docID) {
			return fmt.Sprintf("I couldn't delete document '%s'. Check the ID with 'list documents'.", docID)
		}
		return fmt.Sprintf("Deleted document '%s'.", docID)

	case "summarize_document":
		docID := stringParam(in.Parameters, "doc_id")
		if docID == "" {
			return "Which document should I summarize? Please include its ID."
		}
		summary, err := a.engine.Summarize(ctx, docID)
		if err != nil {
			return documentErrorText(docID, err)
		}
		a.tracker.SetDocument(docID, a.documentName(docID))
		return summary

	case "compare_documents":
		docIDs := stringsParam(in.Parameters, "doc_ids")
		if len(docIDs) < 2 {
			return "Please name at least two document IDs to compare."
		}
		comparison, err := a.engine.Compare(ctx, docIDs, "")
		if err != nil {
			return documentErrorText(strings.Join(docIDs, ", "), err)
		}
		return comparison

	case "analyze_document":
		docID := stringParam(in.Parameters, "doc_id")
		if docID == "" {
			return "Which document should I analyze? Please include its ID."
		}
		analysis, err := a.engine.Analyze(ctx, docID, "general")
		if err != nil {
			return documentErrorText(docID, err)
		}
		a.tracker.SetDocument(docID, a.documentName(docID))
		return analysis

	case "extract_information":
		docID := stringParam(in.Parameters, "doc_id")
		infoType := stringParam(in.Parameters, "info_type")
		if docID == "" {
			return "Which document should I extract from? Please include its ID."
		}
		extracted, err := a.engine.Extract(ctx, docID, infoType)
		if err != nil {
			return documentErrorText(docID, err)
		}
		a.tracker.SetDocument(docID, a.documentName(docID))
		return extracted

	default: // agentic_query
		query := stringParam(in.Parameters, "query")
		if query == "" {
			query = in.RawQuery
		}
		return a.engine.ProcessQuery(ctx, query)
	}
}

func (a *Assistant) documentName(docID string) string {
	if record, ok := a.store.Get(docID); ok {
		return record.DisplayName
	}
	return docID
}

func documentErrorText(docID string, err error) string {
	if errors.Is(err, docstore.ErrDocumentNotFound) {
		return fmt.Sprintf("I couldn't find a document with ID '%s'. Check the ID with 'list documents'.", docID)
	}
	return "That document operation failed. Please try again later."
}

func uploadErrorText(path string, err error) string {
	switch {
	case errors.Is(err, docstore.ErrUnsupportedFormat):
		return fmt.Sprintf("'%s' is not a supported format. I can read pdf, docx, txt and md files.", path)
	case errors.Is(err, docstore.ErrFileTooLarge):
		return fmt.Sprintf("'%s' is too large to upload.", path)
	case errors.Is(err, docstore.ErrEmptyDocument):
		return fmt.Sprintf("'%s' has no readable text.", path)
	default:
		return fmt.Sprintf("Uploading '%s' failed: %v", path, err)
	}
}

func (a *Assistant) handleFileStorage(ctx context.Context, in intent.Intent) string {
	if a.files == nil {
		return "File storage access is not configured. Set a Google access token to enable it."
	}
	limit := intParam(in.Parameters, "limit", 10)

	switch in.Action {
	case "search_files":
		term := stringParam(in.Parameters, "search_term")
		if term == "" {
			return "What files should I search for?"
		}
		files, err := a.files.SearchFiles(ctx, term, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles(fmt.Sprintf("Files matching %q", term), files)

	case "get_shared_files":
		files, err := a.files.SharedFiles(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Shared with you", files)

	case "get_folders":
		folders, err := a.files.Folders(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Your folders", folders)

	case "get_documents":
		files, err := a.files.GoogleDocs(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Your documents", files)

	case "get_spreadsheets":
		files, err := a.files.Spreadsheets(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Your spreadsheets", files)

	case "get_presentations":
		files, err := a.files.Presentations(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Your presentations", files)

	case "get_pdfs":
		files, err := a.files.PDFs(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Your PDFs", files)

	case "get_images":
		files, err := a.files.Images(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Your images", files)

	case "get_storage_usage":
		used, total, err := a.files.StorageUsage(ctx)
		if err != nil {
			return a.serviceError(err)
		}
		if total == 0 {
			return fmt.Sprintf("You are using %s of storage.", formatBytes(used))
		}
		return fmt.Sprintf("You are using %s of %s (%.0f%%).",
			formatBytes(used), formatBytes(total), float64(used)/float64(total)*100)

	case "read_file_by_name", "search_and_read_files", "read_file_interactive":
		return a.readFile(ctx, in)

	default: // get_recent_files
		files, err := a.files.RecentFiles(ctx, limit)
		if err != nil {
			return a.serviceError(err)
		}
		return formatFiles("Recent files", files)
	}
}

// readFile finds files by name and reads the best match. When several files
// match an interactive request, it lists them instead of guessing.
func (a *Assistant) readFile(ctx context.Context, in intent.Intent) string {
	name := stringParam(in.Parameters, "file_name")
	if name == "" {
		name = stringParam(in.Parameters, "search_term")
	}
	if name == "" {
		return "Which file should I read? Please include its name."
	}

	matches, err := a.files.FindFileByName(ctx, name, 5)
	if err != nil {
		return a.serviceError(err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files named %q found.", name)
	}
	if in.Action == "read_file_interactive" && len(matches) > 1 {
		return formatFiles(fmt.Sprintf("Several files match %q, which one?", name), matches)
	}

	fileID, _ := matches[0]["id"].(string)
	fileName, _ := matches[0]["name"].(string)
	content, err := a.files.ReadFile(ctx, fileID)
	if err != nil {
		return a.serviceError(err)
	}
	if len(content) > 2000 {
		cut := 2000
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "\n... (truncated)"
	}
	return fmt.Sprintf("Contents of %s:\n\n%s", fileName, content)
}

func (a *Assistant) handleGeneral(ctx context.Context, in intent.Intent) string {
	switch in.Action {
	case "get_help":
		return helpText

	case "get_daily_summary":
		return a.dailySummary(ctx)

	case "get_priorities":
		return a.priorities(ctx)

	case "get_all_status":
		return a.statusReport()

	default: // general_query
		query := stringParam(in.Parameters, "query")
		if query == "" {
			query = in.RawQuery
		}
		answer, _ := llm.Prompt(ctx, a.llm, query, 300)
		return answer
	}
}

// dailySummary combines mail, calendar and review queues; any unconfigured
// or failing service is skipped.
func (a *Assistant) dailySummary(ctx context.Context) string {
	var sections []string

	if a.email != nil {
		if total, _, err := a.email.UnreadCount(ctx); err != nil {
			a.logger.Printf("daily summary: unread count: %v", err)
		} else {
			sections = append(sections, fmt.Sprintf("You have %d unread emails.", total))
		}
	}

	if a.cal != nil {
		if events, err := a.cal.TodaySchedule(ctx); err != nil {
			a.logger.Printf("daily summary: schedule: %v", err)
		} else if len(events) > 0 {
			sections = append(sections, formatEvents("Today's schedule", events))
		} else {
			sections = append(sections, "No meetings today.")
		}
	}

	if a.sources != nil {
		if prs, err := a.sources.PullRequestsToReview(ctx); err != nil {
			a.logger.Printf("daily summary: reviews: %v", err)
		} else if len(prs) > 0 {
			sections = append(sections, formatIssues("Pull requests to review", prs))
		}
	}

	if len(sections) == 0 {
		return "Nothing to report. No services are configured or reachable."
	}
	return strings.Join(sections, "\n")
}

func (a *Assistant) priorities(ctx context.Context) string {
	var sections []string

	if a.email != nil {
		if urgent, err := a.email.Urgent(ctx, 5); err != nil {
			a.logger.Printf("priorities: urgent emails: %v", err)
		} else if len(urgent) > 0 {
			sections = append(sections, formatEmails("Urgent emails", urgent))
		}
	}

	if a.sources != nil {
		if issues, err := a.sources.AssignedIssues(ctx); err != nil {
			a.logger.Printf("priorities: issues: %v", err)
		} else if len(issues) > 0 {
			sections = append(sections, formatIssues("Issues assigned to you", issues))
		}
	}

	if a.cal != nil {
		if event, err := a.cal.NextEvent(ctx); err != nil {
			a.logger.Printf("priorities: next event: %v", err)
		} else if event != nil {
			sections = append(sections, "Next meeting:\n"+formatEvent(event))
		}
	}

	if len(sections) == 0 {
		return "Nothing urgent right now."
	}
	return strings.Join(sections, "\n")
}

func (a *Assistant) statusReport() string {
	status := func(configured bool) string {
		if configured {
			return "configured"
		}
		return "not configured"
	}

	var sb strings.Builder
	sb.WriteString("Service status:\n")
	fmt.Fprintf(&sb, "- email: %s\n", status(a.email != nil))
	fmt.Fprintf(&sb, "- source control: %s\n", status(a.sources != nil))
	fmt.Fprintf(&sb, "- calendar: %s\n", status(a.cal != nil))
	fmt.Fprintf(&sb, "- file storage: %s\n", status(a.files != nil))
	if a.store != nil {
		stats := a.store.AggregateStats()
		fmt.Fprintf(&sb, "- documents: %d stored, %d chunks indexed\n",
			stats.TotalDocuments, stats.TotalChunks)
	}
	return sb.String()
}

const helpText = `I can help you with:

Email: "how many unread emails", "emails from alice", "search emails for budget", "any urgent emails"
Source control: "prs to review", "my open prs", "issues assigned to me", "recent commits", "repo stats"
Calendar: "today's schedule", "tomorrow's meetings", "next meeting", "free time today"
Documents: "upload <path>", "list documents", "summarize document <id>", "compare documents <id1> <id2>", or just ask about their content
Files: "recent files", "search files for report", "read file <name>", "storage usage"
Or ask "daily summary", "what are my priorities", "status".`
