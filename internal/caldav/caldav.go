// Package caldav provides a CalDAV event source and sink.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/jmorrell/busysync/internal/interval"
	"github.com/jmorrell/busysync/internal/util"
)

// Custom iCalendar property marking an event as a busy block created by
// us, holding the calendar ID the block mirrors.
const sourceProperty = "X-BUSYSYNC-SOURCE"

// Client talks to one CalDAV server. Calendar IDs are calendar
// collection paths (or full URLs) on that server.
type Client struct {
	client *caldav.Client
}

// NewClient creates a CalDAV client with optional basic auth.
func NewClient(serverURL, username, password string) (*Client, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CalDAV server URL: %w", err)
	}

	var httpClient webdav.HTTPClient = http.DefaultClient
	if username != "" && password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, username, password)
	}

	c, err := caldav.NewClient(httpClient, baseURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}

	return &Client{client: c}, nil
}

// CalendarInfo describes one calendar collection on the server.
type CalendarInfo struct {
	Path        string
	DisplayName string
}

// ListCalendars discovers the calendar collections for the current
// principal.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	principal, err := c.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}

	homeSet, err := c.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	result := make([]CalendarInfo, 0, len(calendars))
	for _, cal := range calendars {
		name := cal.Name
		if name == "" {
			name = cal.Path
		}
		result = append(result, CalendarInfo{Path: cal.Path, DisplayName: name})
	}
	return result, nil
}

// ListEvents returns the busy intervals on a calendar within the window.
// Cancelled and transparent (free) events are skipped.
func (c *Client) ListEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]interval.BusyInterval, error) {
	calPath, err := calendarPath(calendarID)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: windowStart,
				End:   windowEnd,
			}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var result []interval.BusyInterval
	for _, obj := range objects {
		for _, comp := range obj.Data.Component.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			iv, ok := toInterval(calendarID, comp)
			if !ok {
				continue
			}
			result = append(result, iv)
		}
	}

	return result, nil
}

func toInterval(calendarID string, comp *ical.Component) (interval.BusyInterval, bool) {
	status := strings.ToUpper(textProp(comp.Props, ical.PropStatus))
	transp := strings.ToUpper(textProp(comp.Props, ical.PropTransparency))
	if status == "CANCELLED" || transp == "TRANSPARENT" {
		return interval.BusyInterval{}, false
	}

	uid := textProp(comp.Props, ical.PropUID)
	start, err := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	if err != nil {
		util.Warn("Skipping event with unparseable DTSTART",
			"calendar_id", calendarID, "uid", uid, "error", err)
		return interval.BusyInterval{}, false
	}
	end, err := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC)
	if err != nil {
		util.Warn("Skipping event with unparseable DTEND",
			"calendar_id", calendarID, "uid", uid, "error", err)
		return interval.BusyInterval{}, false
	}

	class := strings.ToUpper(textProp(comp.Props, ical.PropClass))

	iv := interval.BusyInterval{
		CalendarID: calendarID,
		EventID:    uid,
		Start:      start,
		End:        end,
		Subject:    textProp(comp.Props, ical.PropSummary),
		Kind:       interval.Original,
		Private:    class == "PRIVATE" || class == "CONFIDENTIAL",
	}

	if src := textProp(comp.Props, sourceProperty); src != "" {
		iv.Kind = interval.Synthetic
		iv.SourceCalendarID = src
	}

	return iv, true
}

// CreateBusyBlock creates a busy block on the target calendar and returns
// its UID. Blocks are opaque, private, and tagged with the source
// calendar so they can be recognized and removed on later passes.
func (c *Client) CreateBusyBlock(ctx context.Context, calendarID string, block interval.BusyInterval) (string, error) {
	calPath, err := calendarPath(calendarID)
	if err != nil {
		return "", err
	}

	eventUID := uuid.NewString()

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, eventUID)
	event.Props.SetText(ical.PropSummary, block.Subject)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, block.Start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, block.End)
	event.Props.SetText(ical.PropStatus, "CONFIRMED")
	event.Props.SetText(ical.PropTransparency, "OPAQUE")
	event.Props.SetText(ical.PropClass, "PRIVATE")
	if block.Category != "" {
		event.Props.SetText(ical.PropCategories, block.Category)
	}
	event.Props.SetText(sourceProperty, block.SourceCalendarID)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//busysync//EN")
	cal.Component.Children = append(cal.Component.Children, event.Component)

	path := strings.TrimRight(calPath, "/") + "/" + eventUID + ".ics"
	if _, err := c.client.PutCalendarObject(ctx, path, cal); err != nil {
		return "", fmt.Errorf("failed to create busy block: %w", err)
	}

	return eventUID, nil
}

// DeleteEvent removes an event from a calendar. Deleting an event that is
// already gone is not an error.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	calPath, err := calendarPath(calendarID)
	if err != nil {
		return err
	}

	path := strings.TrimRight(calPath, "/") + "/" + eventID + ".ics"
	if err := c.client.RemoveAll(ctx, path); err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// calendarPath accepts either a bare collection path or a full URL.
func calendarPath(calendarID string) (string, error) {
	if strings.HasPrefix(calendarID, "http://") || strings.HasPrefix(calendarID, "https://") {
		u, err := url.Parse(calendarID)
		if err != nil {
			return "", fmt.Errorf("invalid calendar URL: %w", err)
		}
		return u.Path, nil
	}
	return calendarID, nil
}

func textProp(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}
