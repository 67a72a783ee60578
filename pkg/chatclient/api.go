package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

// TurnRequest is the JSON body sent to POST /api/chat.
type TurnRequest struct {
	UserID      string         `json:"userId"`
	UserMessage chat.Message   `json:"userMessage"`
	History     []chat.Message `json:"history"`
}

// API is the gateway as seen by a Session.
type API interface {
	FetchHistory(ctx context.Context, userID string) ([]chat.Message, error)
	// StreamTurn returns the reply body. The caller closes it.
	StreamTurn(ctx context.Context, req TurnRequest) (io.ReadCloser, error)
}

// StatusError is returned for non-OK gateway responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway responded with status %d", e.Status)
	}
	return fmt.Sprintf("gateway responded with status %d: %s", e.Status, e.Body)
}

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 512

// HTTPAPI talks to a gateway over plain HTTP.
type HTTPAPI struct {
	baseURL string
	client  *http.Client
}

var _ API = &HTTPAPI{}

// NewHTTPAPI targets baseURL, e.g. http://localhost:8080. The client must not
// set a total timeout, since replies are streamed; a nil client uses a
// default one.
func NewHTTPAPI(baseURL string, client *http.Client) *HTTPAPI {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAPI{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (a *HTTPAPI) FetchHistory(ctx context.Context, userID string) ([]chat.Message, error) {
	u := a.baseURL + "/api/history?userId=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build history request")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch history")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var msgs []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, errors.Wrap(err, "decode history")
	}
	return msgs, nil
}

func (a *HTTPAPI) StreamTurn(ctx context.Context, turn TurnRequest) (io.ReadCloser, error) {
	if turn.History == nil {
		turn.History = []chat.Message{}
	}
	body, err := json.Marshal(turn)
	if err != nil {
		return nil, errors.Wrap(err, "encode chat request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send chat request")
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, statusError(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, errors.New("chat response has no body")
	}
	return resp.Body, nil
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
