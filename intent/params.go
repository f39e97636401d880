package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	limitRe    = regexp.MustCompile(`(?:last|recent|latest)\s+(\d+)`)
	daysAgoRe  = regexp.MustCompile(`(?:last|past)\s+(\d+)\s+days?`)
	docListSep = regexp.MustCompile(`\s*(?:,|\band\b|\s)\s*`)
)

const dateLayout = "2006-01-02"

func (p *Parser) extractParameters(lowered, raw string, match []string, action string) map[string]any {
	params := make(map[string]any)

	group := func(i int) string {
		if i < len(match) {
			return strings.TrimSpace(match[i])
		}
		return ""
	}

	switch {
	case strings.Contains(action, "from_sender"):
		if sender := strings.Trim(group(1), `"'`); sender != "" {
			params["sender"] = sender
		}
	case strings.Contains(action, "search"):
		if term := group(1); term != "" {
			params["search_term"] = term
		}
	case action == "read_file_by_name":
		if name := group(1); name != "" {
			params["file_name"] = name
		}
	case action == "summarize_document" || action == "delete_document" || action == "analyze_document":
		if id := group(1); id != "" {
			params["doc_id"] = id
		}
	case action == "extract_information":
		if infoType := group(1); infoType != "" {
			params["info_type"] = infoType
		}
		if id := group(2); id != "" {
			params["doc_id"] = id
		}
	case action == "compare_documents":
		if ids := splitDocIDs(group(1)); len(ids) > 0 {
			params["doc_ids"] = ids
		}
	case action == "upload_document":
		if path := group(1); path != "" {
			params["file_path"] = path
		}
	case action == "agentic_query":
		params["query"] = raw
	}

	for key, value := range timeParameters(lowered, p.now()) {
		params[key] = value
	}

	if m := limitRe.FindStringSubmatch(lowered); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			params["limit"] = n
		}
	} else if strings.Contains(action, "recent") || strings.HasPrefix(action, "get_") {
		params["limit"] = 10
	}

	return params
}

// timeParameters resolves relative date phrases against the given wall-clock
// time. Dates are formatted as YYYY-MM-DD strings.
func timeParameters(query string, now time.Time) map[string]any {
	params := make(map[string]any)
	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(query, "today"):
		params["date"] = today.Format(dateLayout)
	case strings.Contains(query, "tomorrow"):
		params["date"] = today.AddDate(0, 0, 1).Format(dateLayout)
	case strings.Contains(query, "yesterday"):
		params["date"] = today.AddDate(0, 0, -1).Format(dateLayout)
	}

	// Monday-based week start, matching how schedules are usually read.
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	startOfWeek := today.AddDate(0, 0, -(weekday - 1))

	switch {
	case strings.Contains(query, "this week"):
		params["start_date"] = startOfWeek.Format(dateLayout)
		params["end_date"] = startOfWeek.AddDate(0, 0, 6).Format(dateLayout)
	case strings.Contains(query, "last week"):
		start := startOfWeek.AddDate(0, 0, -7)
		params["start_date"] = start.Format(dateLayout)
		params["end_date"] = start.AddDate(0, 0, 6).Format(dateLayout)
	}

	if m := daysAgoRe.FindStringSubmatch(query); m != nil {
		if days, err := strconv.Atoi(m[1]); err == nil {
			params["start_date"] = today.AddDate(0, 0, -days).Format(dateLayout)
			params["end_date"] = today.Format(dateLayout)
		}
	}

	return params
}

func splitDocIDs(raw string) []string {
	parts := docListSep.Split(raw, -1)
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, `"',`)
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
