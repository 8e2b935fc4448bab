// Package zabbix fetches rendered item charts from a Zabbix frontend.
package zabbix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const sessionCookie = "zbx_session"

var ErrLoginFailed = errors.New("zabbix login failed")

// Client keeps a frontend session cookie between login and chart download.
// Charts are not exposed through the JSON-RPC API, hence the form login.
type Client struct {
	BaseURL  string
	User     string
	Password string
	HTTP     *http.Client
}

func NewClient(baseURL, user, password string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("zabbix url is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		User:     user,
		Password: password,
		HTTP:     &http.Client{Jar: jar},
	}, nil
}

// Login opens the sign-in page first to pick up any pre-session cookies,
// then posts the credentials. Success is judged by the session cookie,
// since a rejected login still answers 200.
func (c *Client) Login(ctx context.Context) error {
	loginURL := c.BaseURL + "/index.php"

	if _, err := c.do(ctx, http.MethodGet, loginURL, nil, 10*time.Second); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	form := url.Values{
		"name":      {c.User},
		"password":  {c.Password},
		"enter":     {"Sign in"},
		"autologin": {"1"},
		"request":   {""},
	}
	body, err := c.do(ctx, http.MethodPost, loginURL, form, 10*time.Second)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	u, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return err
	}
	for _, ck := range c.HTTP.Jar.Cookies(u) {
		if ck.Name == sessionCookie {
			return nil
		}
	}
	return fmt.Errorf("%w: cookie %q not set after login\nserver response:\n%s", ErrLoginFailed, sessionCookie, body)
}

// Chart downloads the PNG chart of itemID for the window [from, now].
func (c *Client) Chart(ctx context.Context, itemID, from string, width int) ([]byte, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", "now")
	q.Set("itemids[0]", itemID)
	q.Set("type", "0")
	q.Set("profileIdx", "web.charts.filter")
	q.Set("width", strconv.Itoa(width))

	body, err := c.do(ctx, http.MethodGet, c.BaseURL+"/chart.php?"+q.Encode(), nil, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("fetch chart: %w", err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, target string, form url.Values, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("zabbix returned status %s", resp.Status)
	}
	return data, nil
}
