package adapters

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const emailService = "email"

var emailCategories = []string{"primary", "social", "promotions", "updates"}

// Email reads the user's mailbox through the Gmail API.
type Email struct {
	svc    *gmail.Service
	cache  *cache
	logger *log.Logger
}

func NewEmail(ctx context.Context, accessToken string, logger *log.Logger) (*Email, error) {
	if logger == nil {
		logger = log.Default()
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Email{svc: svc, cache: newCache(defaultCacheTTL), logger: logger}, nil
}

// UnreadCount returns the unread inbox total and a per-category breakdown.
func (e *Email) UnreadCount(ctx context.Context) (int, map[string]int, error) {
	if cached, ok := e.cache.get("unread_count"); ok {
		c := cached.(unreadSummary)
		return c.total, c.byCategory, nil
	}

	resp, err := e.svc.Users.Messages.List("me").Q("is:unread in:inbox").
		MaxResults(500).Context(ctx).Do()
	if err != nil {
		return 0, nil, apiError(emailService, "count unread messages: %w", err)
	}
	total := len(resp.Messages)

	byCategory := make(map[string]int, len(emailCategories))
	for _, category := range emailCategories {
		catResp, err := e.svc.Users.Messages.List("me").
			Q("is:unread category:" + category).MaxResults(500).Context(ctx).Do()
		if err != nil {
			e.logger.Printf("count unread in category %s: %v", category, err)
			continue
		}
		byCategory[category] = len(catResp.Messages)
	}

	e.cache.put("unread_count", unreadSummary{total: total, byCategory: byCategory})
	return total, byCategory, nil
}

type unreadSummary struct {
	total      int
	byCategory map[string]int
}

// Recent returns the newest inbox messages.
func (e *Email) Recent(ctx context.Context, limit int) ([]map[string]any, error) {
	return e.query(ctx, "in:inbox", limit)
}

// FromSender returns messages from the given address or name.
func (e *Email) FromSender(ctx context.Context, sender string, limit int) ([]map[string]any, error) {
	return e.query(ctx, fmt.Sprintf("from:%s", sender), limit)
}

// Search runs a free-form Gmail search.
func (e *Email) Search(ctx context.Context, term string, limit int) ([]map[string]any, error) {
	return e.query(ctx, term, limit)
}

// Urgent returns unread messages flagged important or with urgency markers
// in the subject.
func (e *Email) Urgent(ctx context.Context, limit int) ([]map[string]any, error) {
	return e.query(ctx, "is:unread (is:important OR subject:urgent OR subject:asap)", limit)
}

func (e *Email) query(ctx context.Context, q string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := fmt.Sprintf("query:%s:%d", q, limit)
	if cached, ok := e.cache.get(cacheKey); ok {
		return cached.([]map[string]any), nil
	}

	resp, err := e.svc.Users.Messages.List("me").Q(q).
		MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, apiError(emailService, "list messages for %q: %w", q, err)
	}

	records := make([]map[string]any, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := e.svc.Users.Messages.Get("me", ref.Id).Format("metadata").
			MetadataHeaders("From", "Subject", "Date").Context(ctx).Do()
		if err != nil {
			e.logger.Printf("fetch message %s: %v", ref.Id, err)
			continue
		}
		records = append(records, messageRecord(msg))
	}

	e.cache.put(cacheKey, records)
	return records, nil
}

func messageRecord(msg *gmail.Message) map[string]any {
	record := map[string]any{
		"id":      msg.Id,
		"snippet": msg.Snippet,
		"unread":  hasLabel(msg.LabelIds, "UNREAD"),
	}
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				record["from"] = header.Value
			case "Subject":
				record["subject"] = header.Value
			case "Date":
				record["date"] = header.Value
			}
		}
	}
	return record
}

func hasLabel(labels []string, want string) bool {
	for _, label := range labels {
		if label == want {
			return true
		}
	}
	return false
}
