// Package convo tracks per-session conversation context so pronoun-bearing
// follow-up queries can be resolved against the last-discussed document.
package convo

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lmoretti/aide/intent"
)

// MaxExchanges bounds the retained history; the oldest entry is evicted
// first.
const MaxExchanges = 5

// excerptBytes caps the remembered response excerpt.
const excerptBytes = 200

// Exchange is one remembered query/response pair. Responses are truncated to
// an excerpt.
type Exchange struct {
	Query           string
	ResponseExcerpt string
}

// Context is a read-only snapshot of the tracker state.
type Context struct {
	LastDocumentID   string
	LastDocumentName string
	Exchanges        []Exchange
}

// Tracker remembers the most recently discussed document and recent
// exchanges. One tracker belongs to exactly one session; it is not safe for
// concurrent use and is never shared across sessions.
type Tracker struct {
	lastDocID   string
	lastDocName string
	exchanges   []Exchange
	resolveDoc  func(docID string) (name string, ok bool)
}

// NewTracker creates a tracker. resolveDoc maps a document id to its display
// name and reports whether the id is known; ids that do not resolve are
// ignored.
func NewTracker(resolveDoc func(docID string) (string, bool)) *Tracker {
	if resolveDoc == nil {
		resolveDoc = func(string) (string, bool) { return "", false }
	}
	return &Tracker{resolveDoc: resolveDoc}
}

var docIDRe = regexp.MustCompile(`(?i)(?:ID[:\s]+|doc_id[:\s]+)([a-zA-Z0-9_.-]+)`)

// Record appends an exchange and, for document-domain exchanges, tries to pull
// a document id out of the response text to update the last-discussed
// document.
func (t *Tracker) Record(query string, domain intent.Domain, action, response string) {
	excerpt := response
	if len(excerpt) > excerptBytes {
		cut := excerptBytes
		// Back off to a rune boundary so the excerpt stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut] + "..."
	}

	t.exchanges = append(t.exchanges, Exchange{Query: query, ResponseExcerpt: excerpt})
	if len(t.exchanges) > MaxExchanges {
		t.exchanges = t.exchanges[len(t.exchanges)-MaxExchanges:]
	}

	if domain != intent.DomainDocumentCorpus {
		return
	}

	if m := docIDRe.FindStringSubmatch(response); m != nil {
		docID := m[1]
		if name, ok := t.resolveDoc(docID); ok {
			t.lastDocID = docID
			t.lastDocName = name
		}
	}
}

// SetDocument pins the last-discussed document directly, used when a handler
// already knows which document an operation targeted.
func (t *Tracker) SetDocument(docID, name string) {
	t.lastDocID = docID
	t.lastDocName = name
}

// Current returns a snapshot of the tracked state.
func (t *Tracker) Current() Context {
	exchanges := make([]Exchange, len(t.exchanges))
	copy(exchanges, t.exchanges)
	return Context{
		LastDocumentID:   t.lastDocID,
		LastDocumentName: t.lastDocName,
		Exchanges:        exchanges,
	}
}

// Clear forgets all tracked context.
func (t *Tracker) Clear() {
	t.lastDocID = ""
	t.lastDocName = ""
	t.exchanges = nil
}

// referentialTerms signal that a query refers back to earlier conversation.
// Multi-word entries are matched as phrases, single words as whole tokens.
var referentialTerms = []string{
	"tell me", "more about", "what about",
	"what", "this", "that", "it", "more", "about", "they", "those", "these",
}

// ambiguousTerms trigger document-context injection before the retrieval
// workflow runs.
var ambiguousTerms = []string{
	"this document", "that document", "the document",
	"this", "that", "it",
}

// IsFollowUp reports whether the query likely refers to the previously
// discussed document: a referential term is present, the query is short or the
// parsed intent weak, and document context exists. False positives on
// genuinely new short questions are an accepted tradeoff.
func (t *Tracker) IsFollowUp(query string, parsed intent.Intent) bool {
	if t.lastDocID == "" {
		return false
	}

	lowered := strings.ToLower(strings.TrimSpace(query))
	if !containsReferential(lowered) {
		return false
	}

	wordCount := len(strings.Fields(lowered))
	return wordCount <= 8 || parsed.Confidence < 0.7 || parsed.Domain == intent.DomainGeneral
}

// Disambiguate prepends a bracketed context annotation naming the
// last-discussed document when the query contains an ambiguous referential
// term. The retrieval workflow strips the annotation before treating the
// remainder as the user's literal question.
func (t *Tracker) Disambiguate(query string) string {
	if t.lastDocID == "" {
		return query
	}

	lowered := strings.ToLower(strings.TrimSpace(query))
	for _, term := range ambiguousTerms {
		if !matchTerm(lowered, term) {
			continue
		}
		return "[Context: User is likely referring to document '" + t.lastDocName +
			"' (ID: " + t.lastDocID + ")] " + query
	}
	return query
}

func containsReferential(lowered string) bool {
	for _, term := range referentialTerms {
		if matchTerm(lowered, term) {
			return true
		}
	}
	return false
}

func matchTerm(lowered, term string) bool {
	if strings.Contains(term, " ") {
		return strings.Contains(lowered, term)
	}
	for _, field := range strings.Fields(lowered) {
		if strings.Trim(field, `.,!?'"`) == term {
			return true
		}
	}
	return false
}
