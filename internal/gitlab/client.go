// Package gitlab is a minimal client for the source-control membership
// API: existence probes and inherited-membership listings.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const perPage = 100

// Client issues private-token requests against the /api/v4 surface.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Timeout: timeout,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an HTTP 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// Project is the probe subset of a project payload.
type Project struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
}

// Group is the probe subset of a group payload.
type Group struct {
	ID       int64  `json:"id"`
	FullPath string `json:"full_path"`
}

// Member is one row of a members listing.
type Member struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	State       string `json:"state"`
	AccessLevel int    `json:"access_level"`
}

// User is a full user profile.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	State    string `json:"state"`
}

// GetProject probes a project by id or namespaced path.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := c.get(ctx, "/api/v4/projects/"+url.PathEscape(id), nil, &p)
	return p, err
}

// GetGroup probes a group by id or full path.
func (c *Client) GetGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	err := c.get(ctx, "/api/v4/groups/"+url.PathEscape(id), nil, &g)
	return g, err
}

// ListProjectMembers lists all project members including inherited
// ones, walking every page.
func (c *Client) ListProjectMembers(ctx context.Context, id string) ([]Member, error) {
	return c.listMembers(ctx, "/api/v4/projects/"+url.PathEscape(id)+"/members/all")
}

// ListGroupMembers lists all group members including inherited ones,
// walking every page.
func (c *Client) ListGroupMembers(ctx context.Context, id string) ([]Member, error) {
	return c.listMembers(ctx, "/api/v4/groups/"+url.PathEscape(id)+"/members/all")
}

// GetUser fetches a full user profile by numeric id.
func (c *Client) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := c.get(ctx, "/api/v4/users/"+strconv.FormatInt(id, 10), nil, &u)
	return u, err
}

func (c *Client) listMembers(ctx context.Context, path string) ([]Member, error) {
	var all []Member
	for page := 1; ; page++ {
		query := url.Values{
			"page":     []string{strconv.Itoa(page)},
			"per_page": []string{strconv.Itoa(perPage)},
		}
		var batch []Member
		if err := c.get(ctx, path, query, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, p string, query url.Values, out any) error {
	u := c.BaseURL + p
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", c.Token)
	req.Header.Set("Accept", "application/json")
	res, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode gitlab response: %w", err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}
