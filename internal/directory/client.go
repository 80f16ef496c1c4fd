// Package directory is a minimal client for the corporate identity
// directory API: user profiles and group membership searches.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues basic-auth requests against the directory API.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		Timeout:  timeout,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("directory api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an HTTP 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// ErrGroupNotFound is returned when a group search matches nothing.
var ErrGroupNotFound = errors.New("group not found")

// UserProfile is the subset of a directory profile the review engine
// reads. Manager holds a DN-like string such as
// "uid=jdoe,ou=users,dc=example,dc=com" and may be absent.
type UserProfile struct {
	UID     string `json:"uid"`
	CN      string `json:"cn"`
	Mail    string `json:"mail"`
	Title   string `json:"title"`
	Manager string `json:"manager"`
}

type userEnvelope struct {
	Result UserProfile `json:"result"`
}

// Group carries the raw member and owner identifier lists of a
// directory group. Entries may be DN-like strings or bare uids.
type Group struct {
	MemberUIDs []string `json:"memberUids"`
	OwnerUIDs  []string `json:"ownerUids"`
}

type groupEnvelope struct {
	Result struct {
		Result []Group `json:"result"`
	} `json:"result"`
}

// GetUser fetches one profile by uid.
func (c *Client) GetUser(ctx context.Context, uid string) (UserProfile, error) {
	var env userEnvelope
	if err := c.get(ctx, "/users/"+url.PathEscape(uid), nil, &env); err != nil {
		return UserProfile{}, err
	}
	return env.Result, nil
}

// SearchGroup looks a group up by common name and returns the first
// match. ErrGroupNotFound is returned when the search yields nothing.
func (c *Client) SearchGroup(ctx context.Context, cn string) (Group, error) {
	var env groupEnvelope
	query := url.Values{"criteria": []string{cn}}
	if err := c.get(ctx, "/groups", query, &env); err != nil {
		return Group{}, err
	}
	if len(env.Result.Result) == 0 {
		return Group{}, fmt.Errorf("group %q: %w", cn, ErrGroupNotFound)
	}
	return env.Result.Result[0], nil
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
	req.SetBasicAuth(c.Username, c.Password)
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
		return fmt.Errorf("decode directory response: %w", err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}
