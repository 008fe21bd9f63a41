package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
	"github.com/yungbote/educhat-backend/internal/platform/apierr"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

type httpClient struct {
	log     *logger.Logger
	baseURL string
	token   string
	hc      *http.Client
}

// NewHTTPClient talks to the chat backend at baseURL using the given bearer
// token. The http.Client has no global timeout; streamed replies live as
// long as their context.
func NewHTTPClient(log *logger.Logger, baseURL, token string) Client {
	return &httpClient{
		log:     log.With("component", "EngineAPIClient"),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{},
	}
}

func (c *httpClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decodeError maps the server's {"error":{message,code}} envelope onto the
// engine's error taxonomy.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	code := ""
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
		code = envelope.Error.Code
	}

	base := fmt.Errorf("%s", msg)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		base = fmt.Errorf("%s: %w", msg, pkgerrors.ErrUnauthorized)
	case http.StatusNotFound:
		base = fmt.Errorf("%s: %w", msg, pkgerrors.ErrNotFound)
	case http.StatusBadRequest:
		base = fmt.Errorf("%s: %w", msg, pkgerrors.ErrInvalidArgument)
	}
	return apierr.New(resp.StatusCode, code, base)
}

func (c *httpClient) do(ctx context.Context, method, path string, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *httpClient) ListTutors(ctx context.Context) ([]Tutor, error) {
	var out struct {
		Tutors []Tutor `json:"tutors"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tutors", nil, &out); err != nil {
		return nil, err
	}
	return out.Tutors, nil
}

func (c *httpClient) CreateChat(ctx context.Context, tutorID uuid.UUID, title string) (Chat, error) {
	var out struct {
		Chat Chat `json:"chat"`
	}
	body := map[string]any{"tutor_id": tutorID, "title": title}
	if err := c.do(ctx, http.MethodPost, "/api/chats", body, &out); err != nil {
		return Chat{}, err
	}
	return out.Chat, nil
}

func (c *httpClient) ListChats(ctx context.Context, tutorID *uuid.UUID) ([]Chat, error) {
	path := "/api/chats"
	if tutorID != nil {
		path += "?tutor_id=" + tutorID.String()
	}
	var out struct {
		Chats []Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *httpClient) RenameChat(ctx context.Context, chatID uuid.UUID, title string) (Chat, error) {
	var out struct {
		Chat Chat `json:"chat"`
	}
	body := map[string]any{"title": title}
	if err := c.do(ctx, http.MethodPatch, "/api/chats/"+chatID.String(), body, &out); err != nil {
		return Chat{}, err
	}
	return out.Chat, nil
}

func (c *httpClient) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+chatID.String(), nil, nil)
}

func (c *httpClient) ListMessages(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+chatID.String()+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *httpClient) StreamReply(ctx context.Context, chatID uuid.UUID, reqBody ReplyRequest, onChunk func(chunk []byte) error) error {
	ctx = ctxutil.Default(ctx)
	req, err := c.newRequest(ctx, http.MethodPost, "/api/chats/"+chatID.String()+"/messages", reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	// Reader loop: each chunk is handed over as soon as it arrives; the
	// context cancels the read between chunks.
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if cbErr := onChunk(chunk); cbErr != nil {
				return cbErr
			}
		}
		if rErr != nil {
			if rErr == io.EOF {
				return nil
			}
			return rErr
		}
	}
}
