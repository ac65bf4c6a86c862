package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jmorrell/busysync/internal/interval"
	"github.com/jmorrell/busysync/internal/util"
)

// Extended property key marking an event as a busy block created by us,
// holding the calendar ID the block mirrors.
const sourceProperty = "busysync_source"

// Client wraps the Google Calendar API as an event source and sink.
type Client struct {
	oauth    *OAuthManager
	location *time.Location
}

// NewClient creates a Google Calendar client backed by the OAuth manager.
func NewClient(oauth *OAuthManager, location *time.Location) *Client {
	if location == nil {
		location = time.Local
	}
	return &Client{oauth: oauth, location: location}
}

func (c *Client) service(ctx context.Context) (*calendar.Service, error) {
	httpClient, err := c.oauth.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

// CalendarInfo describes one calendar visible to the authenticated account.
type CalendarInfo struct {
	ID          string
	DisplayName string
	Primary     bool
	ReadOnly    bool
}

// ListCalendars returns the calendars the authenticated account can access.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	var result []CalendarInfo
	pageToken := ""
	for {
		call := svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list calendars: %w", err)
		}
		for _, item := range list.Items {
			result = append(result, CalendarInfo{
				ID:          item.Id,
				DisplayName: item.Summary,
				Primary:     item.Primary,
				ReadOnly:    item.AccessRole == "reader" || item.AccessRole == "freeBusyReader",
			})
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	return result, nil
}

// ListEvents returns the busy intervals on a calendar within the window.
// Cancelled and free (transparent) events are skipped. Recurring events
// are expanded to their individual instances.
func (c *Client) ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]interval.BusyInterval, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	var result []interval.BusyInterval
	pageToken := ""
	for {
		call := svc.Events.List(calendarID).
			TimeMin(windowStart.Format(time.RFC3339)).
			TimeMax(windowEnd.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}

		for _, item := range events.Items {
			iv, ok := c.toInterval(calendarID, item)
			if !ok {
				continue
			}
			result = append(result, iv)
		}

		if events.NextPageToken == "" {
			break
		}
		pageToken = events.NextPageToken
	}

	return result, nil
}

// toInterval converts a Google event to a busy interval. Returns ok=false
// for events that do not occupy busy time.
func (c *Client) toInterval(calendarID string, item *calendar.Event) (interval.BusyInterval, bool) {
	if item.Status == "cancelled" || item.Transparency == "transparent" {
		return interval.BusyInterval{}, false
	}

	start, err := c.parseEventTime(item.Start)
	if err != nil {
		util.Warn("Skipping event with unparseable start time",
			"calendar_id", calendarID, "event_id", item.Id, "error", err)
		return interval.BusyInterval{}, false
	}
	end, err := c.parseEventTime(item.End)
	if err != nil {
		util.Warn("Skipping event with unparseable end time",
			"calendar_id", calendarID, "event_id", item.Id, "error", err)
		return interval.BusyInterval{}, false
	}

	iv := interval.BusyInterval{
		CalendarID: calendarID,
		EventID:    item.Id,
		Start:      start,
		End:        end,
		Subject:    item.Summary,
		Kind:       interval.Original,
		Private:    item.Visibility == "private" || item.Visibility == "confidential",
	}

	if item.ExtendedProperties != nil {
		if src, ok := item.ExtendedProperties.Private[sourceProperty]; ok && src != "" {
			iv.Kind = interval.Synthetic
			iv.SourceCalendarID = src
		}
	}

	return iv, true
}

// parseEventTime handles both timed and all-day events. All-day events
// carry a bare date in the calendar's local zone.
func (c *Client) parseEventTime(t *calendar.EventDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, fmt.Errorf("missing event time")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		return time.ParseInLocation("2006-01-02", t.Date, c.location)
	}
	return time.Time{}, fmt.Errorf("event time has neither dateTime nor date")
}

// CreateBusyBlock creates a busy block on the target calendar and returns
// the provider-assigned event ID. Blocks are opaque (show as busy),
// private, and tagged with the source calendar so they can be recognized
// and removed on later passes.
func (c *Client) CreateBusyBlock(ctx context.Context, calendarID string, block interval.BusyInterval) (string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary: block.Subject,
		Start: &calendar.EventDateTime{
			DateTime: block.Start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: block.End.Format(time.RFC3339),
		},
		Transparency: "opaque",
		Visibility:   "private",
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				sourceProperty: block.SourceCalendarID,
			},
		},
	}

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create busy block: %w", err)
	}

	return created.Id, nil
}

// DeleteEvent removes an event from a calendar. Deleting an event that is
// already gone is not an error.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		if isGone(err) {
			return nil
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
