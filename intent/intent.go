// Package intent maps free-text queries to structured intents using ordered
// per-domain pattern tables.
package intent

import (
	"regexp"
	"strings"
	"time"
)

// Domain identifies which service family a query targets.
type Domain string

const (
	DomainEmail          Domain = "email"
	DomainSourceControl  Domain = "source_control"
	DomainCalendar       Domain = "calendar"
	DomainDocumentCorpus Domain = "document_corpus"
	DomainFileStorage    Domain = "file_storage"
	DomainGeneral        Domain = "general"
)

// Intent is the structured interpretation of a single query. It is created
// per query and never mutated after Parse returns.
type Intent struct {
	Domain     Domain
	Action     string
	Parameters map[string]any
	Confidence float64
	RawQuery   string
}

type pattern struct {
	re     *regexp.Regexp
	action string
}

func table(pairs ...[2]string) []pattern {
	patterns := make([]pattern, 0, len(pairs))
	for _, pair := range pairs {
		patterns = append(patterns, pattern{
			re:     regexp.MustCompile(pair[0]),
			action: pair[1],
		})
	}
	return patterns
}

// Pattern ordering within each table is part of the parser's behaviour:
// more specific phrasings must appear before generic catch-alls because the
// first match wins.
var emailPatterns = table(
	[2]string{`(?:how many|count of|number of).*(?:unread|new).*(?:email|mail)`, "get_unread_count"},
	[2]string{`(?:summarize|summary of).*(?:email|mail).*from\s+(.+)`, "summarize_emails_from_sender"},
	[2]string{`(?:email|mail).*from\s+(.+)`, "get_emails_from_sender"},
	[2]string{`(?:urgent|important).*(?:email|mail)`, "get_urgent_emails"},
	[2]string{`(?:recent|latest).*(?:email|mail)`, "get_recent_emails"},
	[2]string{`(?:email|mail).*(?:about|regarding)\s+(.+)`, "search_emails"},
)

var sourceControlPatterns = table(
	[2]string{`(?:pull requests?|\bprs?\b).*(?:review|to review)`, "get_prs_to_review"},
	[2]string{`(?:my|open).*(?:pull requests?|\bprs?\b)`, "get_my_prs"},
	[2]string{`issues?.*assigned`, "get_assigned_issues"},
	[2]string{`(?:recent|latest).*commit`, "get_recent_commits"},
	[2]string{`(?:repository|repo).*stat`, "get_repo_stats"},
	[2]string{`(?:github|git).*(?:summary|overview)`, "get_activity_summary"},
)

var calendarPatterns = table(
	[2]string{`(?:schedule|calendar).*(?:today|this day)`, "get_today_schedule"},
	[2]string{`(?:schedule|calendar).*(?:tomorrow|next day)`, "get_tomorrow_schedule"},
	[2]string{`(?:schedule|calendar).*(?:this week|week)`, "get_week_schedule"},
	[2]string{`(?:next|upcoming).*(?:meeting|event)`, "get_next_meeting"},
	[2]string{`(?:free time|available)`, "get_free_time"},
	[2]string{`(?:busy|occupied)`, "get_busy_times"},
)

// Document-corpus patterns are checked before file-storage ones: document
// phrasing is a specialisation of file phrasing and must win the match.
var documentCorpusPatterns = table(
	[2]string{`(?:summarize|summary of).*document\s+([a-z0-9_.-]+)`, "summarize_document"},
	[2]string{`compare.*documents?\s+(.+)`, "compare_documents"},
	[2]string{`extract\s+(.+?)\s+from\s+document\s+([a-z0-9_.-]+)`, "extract_information"},
	[2]string{`analy(?:ze|se|sis).*document\s+([a-z0-9_.-]+)`, "analyze_document"},
	[2]string{`delete\s+document\s+([a-z0-9_.-]+)`, "delete_document"},
	[2]string{`upload\s+(?:document\s+|file\s+)?(\S+)`, "upload_document"},
	[2]string{`(?:list|show).*documents`, "list_documents"},
	[2]string{`documents?.*(?:about|say|contain)`, "agentic_query"},
	[2]string{`(?:what|who|when|where|how|why|ask|question).*documents?`, "agentic_query"},
)

var fileStoragePatterns = table(
	[2]string{`(?:search|find).*read.*(?:file|document).*(?:for|about)\s+(.+)`, "search_and_read_files"},
	[2]string{`(?:read|open|show content).*(?:file|document)\s+(.+)`, "read_file_by_name"},
	[2]string{`(?:read|open|show content).*(?:file|document)`, "read_file_interactive"},
	[2]string{`(?:recent|latest).*(?:file|document)`, "get_recent_files"},
	[2]string{`(?:search|find).*(?:file|document).*(?:for|about)\s+(.+)`, "search_files"},
	[2]string{`(?:shared|share).*(?:file|document)`, "get_shared_files"},
	[2]string{`(?:google\s+)?(?:docs?|documents?)\b`, "get_documents"},
	[2]string{`(?:google\s+)?(?:sheets?|spreadsheets?)\b`, "get_spreadsheets"},
	[2]string{`(?:google\s+)?(?:slides?|presentations?)\b`, "get_presentations"},
	[2]string{`(?:folder|directory)`, "get_folders"},
	[2]string{`\bpdfs?\b`, "get_pdfs"},
	[2]string{`(?:image|picture|photo)s?\b`, "get_images"},
	[2]string{`(?:storage|space).*(?:usage|used)`, "get_storage_usage"},
	[2]string{`(?:drive|cloud).*(?:file|document)`, "get_recent_files"},
)

var generalPatterns = table(
	[2]string{`(?:daily|day).*(?:summary|overview)`, "get_daily_summary"},
	[2]string{`(?:what.*focus|priority|priorities)`, "get_priorities"},
	[2]string{`(?:status|overview).*(?:all|everything)`, "get_all_status"},
	[2]string{`(?:help|assist)`, "get_help"},
)

type domainTable struct {
	domain   Domain
	patterns []pattern
}

var domainTables = []domainTable{
	{DomainEmail, emailPatterns},
	{DomainSourceControl, sourceControlPatterns},
	{DomainCalendar, calendarPatterns},
	{DomainDocumentCorpus, documentCorpusPatterns},
	{DomainFileStorage, fileStoragePatterns},
	{DomainGeneral, generalPatterns},
}

// domainKeywords boost confidence when present in the query.
var domainKeywords = []string{
	"email", "mail", "pr", "pull request", "issue", "commit",
	"calendar", "schedule", "meeting",
	"file", "document", "folder", "repo",
}

// Parser turns raw queries into intents. The zero value is not usable; call
// NewParser.
type Parser struct {
	now func() time.Time
}

// Option configures the parser.
type Option func(*Parser)

// WithClock overrides the wall clock used by the relative-date extractor.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse maps a query to an intent. It never fails: queries matching no
// pattern resolve to a low-confidence general intent.
func (p *Parser) Parse(query string) Intent {
	lowered := strings.ToLower(strings.TrimSpace(query))

	for _, dt := range domainTables {
		for _, pat := range dt.patterns {
			match := pat.re.FindStringSubmatch(lowered)
			if match == nil {
				continue
			}
			return Intent{
				Domain:     dt.domain,
				Action:     pat.action,
				Parameters: p.extractParameters(lowered, query, match, pat.action),
				Confidence: confidence(lowered, pat.re.String()),
				RawQuery:   query,
			}
		}
	}

	return Intent{
		Domain:     DomainGeneral,
		Action:     "general_query",
		Parameters: map[string]any{"query": query},
		Confidence: 0.3,
		RawQuery:   query,
	}
}

func confidence(query, patternSource string) float64 {
	patternWords := len(strings.Fields(patternSource))
	queryWords := len(strings.Fields(query))
	if queryWords == 0 {
		queryWords = 1
	}

	specificity := float64(patternWords) / float64(queryWords)
	if specificity > 1.0 {
		specificity = 1.0
	}

	bonus := 0.0
	for _, keyword := range domainKeywords {
		if strings.Contains(query, keyword) {
			bonus += 0.1
		}
	}

	score := 0.5 + specificity*0.3 + bonus
	if score > 1.0 {
		score = 1.0
	}
	return score
}
