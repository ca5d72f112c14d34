package imgbb

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ErrEmptyURL is returned when the host accepts the upload but returns no URL
var ErrEmptyURL = errors.New("image host returned no url")

// Client uploads images to ImgBB
type Client struct {
	BaseURL    string
	APIKey     string
	MockAPI    bool
	httpClient *http.Client
}

// NewClient creates a new ImgBB client
func NewClient(baseURL, apiKey string, mockAPI bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		MockAPI:    mockAPI,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upload posts the image as base64 and returns its public URL
func (c *Client) Upload(ctx context.Context, image []byte, filename string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if c.MockAPI {
		return fmt.Sprintf("https://i.ibb.co/mock/%d-%s", time.Now().UnixNano(), filename), nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("key", c.APIKey); err != nil {
		return "", fmt.Errorf("failed to write key field: %w", err)
	}
	if err := w.WriteField("image", base64.StdEncoding.EncodeToString(image)); err != nil {
		return "", fmt.Errorf("failed to write image field: %w", err)
	}
	if filename != "" {
		if err := w.WriteField("name", filename); err != nil {
			return "", fmt.Errorf("failed to write name field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Data.URL == "" {
		return "", ErrEmptyURL
	}
	return response.Data.URL, nil
}
