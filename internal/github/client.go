package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.github.com"

	acceptV3       = "application/vnd.github.v3+json"
	acceptDispatch = "application/vnd.github.everest-preview+json"
)

// Client is a minimal GitHub REST client. Every request carries the token it
// was built with; no request is retried.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(ctx context.Context, token, baseURL string) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		httpClient.Timeout = 30 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

type Repository struct {
	FullName string `json:"full_name"`
	SSHURL   string `json:"ssh_url"`
	CloneURL string `json:"clone_url"`
}

// Repository fetches metadata for fullName ("org/repo").
func (c *Client) Repository(ctx context.Context, fullName string) (*Repository, error) {
	org, repo, ok := strings.Cut(fullName, "/")
	if !ok || org == "" || repo == "" {
		return nil, fmt.Errorf("repository %q is not of the form org/repo", fullName)
	}

	resp, err := c.do(ctx, http.MethodGet, c.repoURL(org, repo), acceptV3, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewErrUnexpectedStatus("get repository "+fullName, resp.StatusCode, readBody(resp))
	}
	r := new(Repository)
	if err := json.NewDecoder(resp.Body).Decode(r); err != nil {
		return nil, fmt.Errorf("decoding repository %s: %w", fullName, err)
	}
	return r, nil
}

// FileExists reports whether path exists in org/repo. Any status other than
// 200 or 404 is returned as *ErrUnexpectedStatus.
func (c *Client) FileExists(ctx context.Context, org, repo, path string) (bool, error) {
	u := c.repoURL(org, repo) + "/contents/" + escapePath(strings.TrimPrefix(path, "/"))

	resp, err := c.do(ctx, http.MethodGet, u, acceptV3, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, NewErrUnexpectedStatus("get contents "+path, resp.StatusCode, readBody(resp))
	}
}

// DispatchEvent is the body of a repository_dispatch request.
type DispatchEvent struct {
	EventType string
	Workflow  string
	Inputs    map[string]string
}

type dispatchPayload struct {
	EventType     string        `json:"event_type"`
	ClientPayload clientPayload `json:"client_payload"`
}

type clientPayload struct {
	Workflow string            `json:"workflow"`
	Inputs   map[string]string `json:"inputs"`
}

// Dispatch sends a repository_dispatch event to org/repo. Success is exactly
// 204 No Content.
func (c *Client) Dispatch(ctx context.Context, org, repo string, ev DispatchEvent) error {
	body, err := json.Marshal(dispatchPayload{
		EventType:     ev.EventType,
		ClientPayload: clientPayload{Workflow: ev.Workflow, Inputs: ev.Inputs},
	})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, c.repoURL(org, repo)+"/dispatches", acceptDispatch, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return NewErrDispatchFailed(resp.StatusCode, readBody(resp))
	}
	zap.S().Infow("workflow dispatched", "repository", org+"/"+repo, "event_type", ev.EventType, "workflow", ev.Workflow)
	return nil
}

func (c *Client) repoURL(org, repo string) string {
	return c.baseURL + "/repos/" + url.PathEscape(org) + "/" + url.PathEscape(repo)
}

func (c *Client) do(ctx context.Context, method, u, accept string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewErrConnection(err)
	}
	return resp, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return strings.TrimSpace(string(b))
}
