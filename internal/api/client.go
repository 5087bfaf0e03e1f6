package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the HTTP side channel next to the hub: image upload and
// points purchase.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zerolog.Logger
}

// ImageUploadResponse is the server's answer to a successful upload.
type ImageUploadResponse struct {
	ImageID      string `json:"imageId"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ImageURL     string `json:"imageUrl"`
}

// New builds a side-channel client for the given server base URL.
func New(baseURL string, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger,
	}
}

// UploadImage posts the file as multipart form data to
// /api/client/{clientId}/image.
func (c *Client) UploadImage(ctx context.Context, clientID, path string) (*ImageUploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/api/client/%s/image", c.baseURL, clientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upload rejected: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ImageUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	c.log.Info().Str("image_id", out.ImageID).Msg("image uploaded")
	return &out, nil
}

// ChargePoints posts a purchase to /api/client/{clientId}/points and returns
// the new balance. The server also confirms via a PointsUpdated push.
func (c *Client) ChargePoints(ctx context.Context, clientID string, amount int) (int, error) {
	payload, err := json.Marshal(struct {
		ClientID string `json:"clientId"`
		Amount   int    `json:"amount"`
	}{ClientID: clientID, Amount: amount})
	if err != nil {
		return 0, fmt.Errorf("marshal charge request: %w", err)
	}

	url := fmt.Sprintf("%s/api/client/%s/points", c.baseURL, clientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("charge points: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("charge rejected: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Points int `json:"points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode charge response: %w", err)
	}
	c.log.Info().Int("points", out.Points).Msg("points charged")
	return out.Points, nil
}
