package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"puzzle-bar/models"
	"puzzle-bar/utils"
)

// HTTPFetcher reads views from the REST API through the gateway.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	// Staff selects the all-orders list instead of the caller's own orders.
	Staff  bool
	Client *http.Client
}

func NewHTTPFetcher(baseURL, token string, staff bool) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Staff:   staff,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (f *HTTPFetcher) Orders(ctx context.Context) ([]models.Order, error) {
	path := "/orders/mine"
	if f.Staff {
		path = "/staff/orders"
	}
	var out []models.Order
	if err := f.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *HTTPFetcher) Challenges(ctx context.Context) ([]models.Challenge, []models.Challenge, error) {
	var upcoming, past []models.Challenge
	if err := f.get(ctx, "/challenges/upcoming", &upcoming); err != nil {
		return nil, nil, err
	}
	if err := f.get(ctx, "/challenges/past", &past); err != nil {
		return nil, nil, err
	}
	return upcoming, past, nil
}

func (f *HTTPFetcher) Roster(ctx context.Context, challengeID string) ([]models.Participant, error) {
	var roster struct {
		Current []models.Participant `json:"current"`
		Past    []models.Participant `json:"past"`
	}
	if err := f.get(ctx, "/challenges/"+url.PathEscape(challengeID)+"/participants", &roster); err != nil {
		return nil, err
	}
	return append(roster.Current, roster.Past...), nil
}

func (f *HTTPFetcher) Balance(ctx context.Context) (int64, error) {
	var me models.User
	if err := f.get(ctx, "/user/me", &me); err != nil {
		return 0, err
	}
	return me.Puzzles, nil
}

func (f *HTTPFetcher) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.Token)

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		utils.LogWarn("[SYNC] GET %s returned %d: %s", path, resp.StatusCode, string(body))
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
