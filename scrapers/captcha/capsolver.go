// Package captcha solves Cloudflare Turnstile challenges through the
// CapSolver API for the few board sites that gate their lookup forms.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	http "github.com/bogdanfinn/fhttp"

	"license-watch-go/tlsclient"
)

const (
	createTaskURL = "https://api.capsolver.com/createTask"
	getResultURL  = "https://api.capsolver.com/getTaskResult"
	pollInterval  = 3 * time.Second
	maxPolls      = 30
)

// CapSolver is a thin client for the CapSolver task API.
type CapSolver struct {
	apiKey   string
	sessions tlsclient.SessionFactory
}

// New returns a solver, or nil when no API key is configured. Callers
// treat a nil solver as "CAPTCHA boards route to manual review".
func New(apiKey string, sessions tlsclient.SessionFactory) *CapSolver {
	if apiKey == "" {
		return nil
	}
	return &CapSolver{apiKey: apiKey, sessions: sessions}
}

type taskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           string `json:"taskId"`
	Status           string `json:"status"`
	Solution         struct {
		Token string `json:"token"`
	} `json:"solution"`
}

// SolveTurnstile creates an AntiTurnstile task and polls until CapSolver
// returns a token or the context expires.
func (cs *CapSolver) SolveTurnstile(ctx context.Context, websiteURL, siteKey string) (string, error) {
	session, err := cs.sessions()
	if err != nil {
		return "", fmt.Errorf("capsolver: session: %w", err)
	}

	created, err := cs.post(ctx, session, createTaskURL, map[string]any{
		"clientKey": cs.apiKey,
		"task": map[string]any{
			"type":       "AntiTurnstileTaskProxyLess",
			"websiteURL": websiteURL,
			"websiteKey": siteKey,
		},
	})
	if err != nil {
		return "", err
	}
	if created.ErrorID != 0 {
		return "", fmt.Errorf("capsolver: create task: %s", created.ErrorDescription)
	}

	for i := 0; i < maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}

		polled, err := cs.post(ctx, session, getResultURL, map[string]any{
			"clientKey": cs.apiKey,
			"taskId":    created.TaskID,
		})
		if err != nil {
			return "", err
		}
		if polled.ErrorID != 0 {
			return "", fmt.Errorf("capsolver: task failed: %s", polled.ErrorDescription)
		}
		if polled.Status == "ready" {
			return polled.Solution.Token, nil
		}
	}
	return "", fmt.Errorf("capsolver: task %s not ready after %d polls", created.TaskID, maxPolls)
}

func (cs *CapSolver) post(ctx context.Context, session interface {
	Do(req *http.Request) (*http.Response, error)
}, url string, payload map[string]any) (*taskResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("capsolver: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("capsolver: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capsolver: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("capsolver: read body: %w", err)
	}
	var out taskResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("capsolver: decode: %w", err)
	}
	return &out, nil
}
