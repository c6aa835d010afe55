package users

import (
	"bytes"
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

var ErrUserNotFound = errors.New("user not found")

// errBodyLimit caps how much of a failed response body is kept for diagnostics.
const errBodyLimit = 1024

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUserNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrUserNotFound && e.StatusCode == http.StatusNotFound
}

// UserAPI is the REST backend the console reads from and writes to.
type UserAPI interface {
	ListPaged(ctx context.Context, pageNumber, pageSize int) (Page, error)
	CreateUser(ctx context.Context, in Input) (User, error)
	UpdateUser(ctx context.Context, id int64, in Input) error
	DeleteUser(ctx context.Context, id int64) error
}

type httpUserAPI struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// ClientOption tweaks the HTTP client built by NewHTTPUserAPI.
type ClientOption func(*httpUserAPI)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *httpUserAPI) { a.client = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) ClientOption {
	return func(a *httpUserAPI) { a.client.Timeout = d }
}

func WithUserAgent(ua string) ClientOption {
	return func(a *httpUserAPI) { a.userAgent = ua }
}

// NewHTTPUserAPI builds a UserAPI against baseURL, e.g. http://localhost:5213/api.
func NewHTTPUserAPI(baseURL string, opts ...ClientOption) UserAPI {
	a := &httpUserAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *httpUserAPI) ListPaged(ctx context.Context, pageNumber, pageSize int) (Page, error) {
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(pageNumber))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var page Page
	if err := a.do(ctx, http.MethodGet, "/User/paged?"+q.Encode(), nil, &page); err != nil {
		return Page{}, err
	}
	if page.Data == nil {
		page.Data = []User{}
	}
	return page, nil
}

func (a *httpUserAPI) CreateUser(ctx context.Context, in Input) (User, error) {
	var u User
	if err := a.do(ctx, http.MethodPost, "/User", in, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (a *httpUserAPI) UpdateUser(ctx context.Context, id int64, in Input) error {
	return a.do(ctx, http.MethodPut, "/User/"+strconv.FormatInt(id, 10), in, nil)
}

func (a *httpUserAPI) DeleteUser(ctx context.Context, id int64) error {
	return a.do(ctx, http.MethodDelete, "/User/"+strconv.FormatInt(id, 10), nil, nil)
}

// do sends one request. out may be nil; an empty or non-JSON success body is
// not an error for writes since callers only care about success there.
func (a *httpUserAPI) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	target := a.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if method == http.MethodGet {
			return fmt.Errorf("%s %s: empty response body", method, target)
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if method == http.MethodGet {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return nil
}
