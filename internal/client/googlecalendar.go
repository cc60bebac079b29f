package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/canibunk/canibunk-api/pkg/config"
)

var calendarScopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"openid",
	"email",
	"profile",
}

// CalendarEvent is the payload inserted into the user's primary calendar.
type CalendarEvent struct {
	Summary     string
	Description string
	Date        string // YYYY-MM-DD, all-day event
}

// GoogleCalendarClient wraps the OAuth flow and event insertion against the
// Google Calendar REST API.
type GoogleCalendarClient struct {
	oauth   *oauth2.Config
	baseURL string
}

// NewGoogleCalendarClient constructs a client from calendar config.
func NewGoogleCalendarClient(cfg config.CalendarConfig) *GoogleCalendarClient {
	return &GoogleCalendarClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       calendarScopes,
			Endpoint:     google.Endpoint,
		},
		baseURL: "https://www.googleapis.com/calendar/v3",
	}
}

// AuthURL returns the consent URL carrying the caller's state.
func (c *GoogleCalendarClient) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades the callback code for tokens.
func (c *GoogleCalendarClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}
	return token, nil
}

// TokenSource returns a refreshing token source seeded with stored tokens.
func (c *GoogleCalendarClient) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return c.oauth.TokenSource(ctx, token)
}

type calendarEventBody struct {
	Summary     string            `json:"summary"`
	Description string            `json:"description,omitempty"`
	Start       calendarEventDate `json:"start"`
	End         calendarEventDate `json:"end"`
}

type calendarEventDate struct {
	Date string `json:"date"`
}

// InsertEvent creates an all-day event in the user's primary calendar.
func (c *GoogleCalendarClient) InsertEvent(ctx context.Context, source oauth2.TokenSource, event CalendarEvent) error {
	body, err := json.Marshal(calendarEventBody{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       calendarEventDate{Date: event.Date},
		End:         calendarEventDate{Date: nextDay(event.Date)},
	})
	if err != nil {
		return fmt.Errorf("marshal calendar event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calendars/primary/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := oauth2.NewClient(ctx, source)
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar api status %d", resp.StatusCode)
	}
	return nil
}

// nextDay computes the exclusive end date for an all-day event. Falls back to
// the same date on parse failure; the API then treats it as a single day.
func nextDay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}
