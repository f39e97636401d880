package adapters

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const calendarService = "calendar"

// Working hours used when computing free slots.
const (
	workdayStartHour = 9
	workdayEndHour   = 18
)

// Calendar reads the user's primary calendar through the Calendar API.
type Calendar struct {
	svc    *calendar.Service
	cache  *cache
	logger *log.Logger
	now    func() time.Time
}

func NewCalendar(ctx context.Context, accessToken string, logger *log.Logger) (*Calendar, error) {
	if logger == nil {
		logger = log.Default()
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Calendar{svc: svc, cache: newCache(defaultCacheTTL), logger: logger, now: time.Now}, nil
}

// TodaySchedule returns today's events in start order.
func (c *Calendar) TodaySchedule(ctx context.Context) ([]map[string]any, error) {
	start := startOfDay(c.now())
	return c.eventsBetween(ctx, start, start.AddDate(0, 0, 1))
}

// TomorrowSchedule returns tomorrow's events in start order.
func (c *Calendar) TomorrowSchedule(ctx context.Context) ([]map[string]any, error) {
	start := startOfDay(c.now()).AddDate(0, 0, 1)
	return c.eventsBetween(ctx, start, start.AddDate(0, 0, 1))
}

// WeekSchedule returns the next seven days of events in start order.
func (c *Calendar) WeekSchedule(ctx context.Context) ([]map[string]any, error) {
	start := startOfDay(c.now())
	return c.eventsBetween(ctx, start, start.AddDate(0, 0, 7))
}

// NextEvent returns the first upcoming event, or nil when nothing is scheduled.
func (c *Calendar) NextEvent(ctx context.Context) (map[string]any, error) {
	resp, err := c.svc.Events.List("primary").
		TimeMin(c.now().Format(time.RFC3339)).
		MaxResults(1).SingleEvents(true).OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, apiError(calendarService, "fetch next event: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return eventRecord(resp.Items[0]), nil
}

// BusyTimes returns today's busy intervals from the free/busy API.
func (c *Calendar) BusyTimes(ctx context.Context) ([]map[string]any, error) {
	busy, err := c.busyIntervals(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, 0, len(busy))
	for _, interval := range busy {
		records = append(records, map[string]any{
			"start": interval[0].Format("15:04"),
			"end":   interval[1].Format("15:04"),
		})
	}
	return records, nil
}

// FreeTime returns today's free slots within working hours, computed as the
// gaps between busy intervals.
func (c *Calendar) FreeTime(ctx context.Context) ([]map[string]any, error) {
	busy, err := c.busyIntervals(ctx)
	if err != nil {
		return nil, err
	}

	day := startOfDay(c.now())
	cursor := day.Add(workdayStartHour * time.Hour)
	end := day.Add(workdayEndHour * time.Hour)

	var records []map[string]any
	for _, interval := range busy {
		if interval[0].After(cursor) {
			records = append(records, map[string]any{
				"start": cursor.Format("15:04"),
				"end":   minTime(interval[0], end).Format("15:04"),
			})
		}
		if interval[1].After(cursor) {
			cursor = interval[1]
		}
		if !cursor.Before(end) {
			return records, nil
		}
	}
	if cursor.Before(end) {
		records = append(records, map[string]any{
			"start": cursor.Format("15:04"),
			"end":   end.Format("15:04"),
		})
	}
	return records, nil
}

func (c *Calendar) busyIntervals(ctx context.Context) ([][2]time.Time, error) {
	day := startOfDay(c.now())
	resp, err := c.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: day.Format(time.RFC3339),
		TimeMax: day.AddDate(0, 0, 1).Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, apiError(calendarService, "query free/busy: %w", err)
	}

	primary, ok := resp.Calendars["primary"]
	if !ok {
		return nil, nil
	}

	intervals := make([][2]time.Time, 0, len(primary.Busy))
	for _, period := range primary.Busy {
		start, err1 := time.Parse(time.RFC3339, period.Start)
		end, err2 := time.Parse(time.RFC3339, period.End)
		if err1 != nil || err2 != nil {
			c.logger.Printf("skip unparseable busy period %s-%s", period.Start, period.End)
			continue
		}
		intervals = append(intervals, [2]time.Time{start.Local(), end.Local()})
	}
	return intervals, nil
}

func (c *Calendar) eventsBetween(ctx context.Context, from, to time.Time) ([]map[string]any, error) {
	cacheKey := fmt.Sprintf("events:%d:%d", from.Unix(), to.Unix())
	if cached, ok := c.cache.get(cacheKey); ok {
		return cached.([]map[string]any), nil
	}

	resp, err := c.svc.Events.List("primary").
		TimeMin(from.Format(time.RFC3339)).TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).OrderBy("startTime").MaxResults(50).
		Context(ctx).Do()
	if err != nil {
		return nil, apiError(calendarService, "list events: %w", err)
	}

	records := make([]map[string]any, 0, len(resp.Items))
	for _, ev := range resp.Items {
		records = append(records, eventRecord(ev))
	}

	c.cache.put(cacheKey, records)
	return records, nil
}

func eventRecord(ev *calendar.Event) map[string]any {
	record := map[string]any{
		"summary":   ev.Summary,
		"location":  ev.Location,
		"attendees": len(ev.Attendees),
	}
	record["start"], record["all_day"] = eventTime(ev.Start)
	record["end"], _ = eventTime(ev.End)
	return record
}

// eventTime renders either the DateTime of a timed event or the Date of an
// all-day one.
func eventTime(t *calendar.EventDateTime) (string, bool) {
	if t == nil {
		return "", false
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed.Local().Format("2006-01-02 15:04"), false
		}
		return t.DateTime, false
	}
	return t.Date, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
