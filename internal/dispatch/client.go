// internal/dispatch/client.go
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"handoff-coordinator/internal/common/config"
	apperrors "handoff-coordinator/internal/common/errors"
)

// ChatAPI posts one message to one channel of the external chat
// system and returns the provider's message id.
type ChatAPI interface {
	PostMessage(ctx context.Context, channel string, msg *Message) (string, error)
}

// Message is the provider-level message body.
type Message struct {
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Client talks to a Slack-compatible chat API: bearer token, JSON
// POST to /chat.postMessage, {ok, error, ts} response envelope.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg config.ChatConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.BotToken,
		http:    &http.Client{Timeout: config.GetDuration(cfg.Timeout)},
	}
}

type postMessageRequest struct {
	Channel string            `json:"channel"`
	Text    string            `json:"text"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// PostMessage performs exactly one delivery attempt. The returned
// error is always a StandardError carrying one of the channel error
// codes; transport failures and provider rejections are distinguished
// so the dispatcher can report them separately.
func (c *Client) PostMessage(ctx context.Context, channel string, msg *Message) (string, error) {
	body, err := json.Marshal(postMessageRequest{
		Channel: channel,
		Text:    msg.Text,
		Fields:  msg.Fields,
	})
	if err != nil {
		return "", apperrors.NewChannelAPIError(channel, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewBuffer(body))
	if err != nil {
		return "", apperrors.NewChannelAPIError(channel, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.NewChannelUnreachableError(channel, err)
	}
	defer res.Body.Close()

	var resp postMessageResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", apperrors.NewChannelAPIError(channel, "undecodable response: "+err.Error())
	}

	if !resp.OK {
		if resp.Error == "channel_not_found" {
			return "", apperrors.NewChannelNotFoundError(channel)
		}
		apiError := resp.Error
		if apiError == "" {
			apiError = "chat api error"
		}
		return "", apperrors.NewChannelAPIError(channel, apiError)
	}

	return resp.TS, nil
}

var _ ChatAPI = (*Client)(nil)
