package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/stockcheck/internal/config"
)

// Client exposes the Telegram Bot API operations used by the application.
type Client interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	GetFile(ctx context.Context, fileID string) (*File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
	SetMyCommands(ctx context.Context, commands []BotCommand) error
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	token      string
}

// NewClient builds a Bot API client using the provided configuration values.
func NewClient(cfg config.TelegramConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &APIClient{
		httpClient: restyClient,
		token:      cfg.BotToken,
	}
}

// InlineKeyboardButton is a button carrying callback data.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// InlineKeyboardMarkup attaches buttons to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// SendMessageRequest is the sendMessage payload.
type SendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Message is the subset of the sent message the application reads back.
type Message struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
}

// File describes a file ready for download.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// BotCommand is one entry of the client's command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// APIError is returned when the Bot API answers ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error: method=%s, code=%d, description=%s", e.Method, e.Code, e.Description)
}

func (c *APIClient) call(ctx context.Context, method string, payload any, out any) error {
	envelope := new(apiResponse)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(envelope).
		SetError(envelope).
		Post(fmt.Sprintf("/bot%s/%s", c.token, method))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest || !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		return &APIError{Method: method, Code: code, Description: envelope.Description}
	}

	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *APIClient) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	result := new(Message)
	if err := c.call(ctx, "sendMessage", req, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *APIClient) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

func (c *APIClient) GetFile(ctx context.Context, fileID string) (*File, error) {
	result := new(File)
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, result); err != nil {
		return nil, err
	}
	if result.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: no file path for %s", fileID)
	}
	return result, nil
}

// DownloadFile fetches the content of a file resolved by GetFile.
func (c *APIClient) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/file/bot%s/%s", c.token, strings.TrimPrefix(filePath, "/")))
	if err != nil {
		return nil, fmt.Errorf("download telegram file: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download telegram file: status=%d", resp.StatusCode())
	}
	return resp.Body(), nil
}

func (c *APIClient) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}
