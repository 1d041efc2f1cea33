// Package vision provides image safety classification for listing moderation.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Classifier returns a danger score for an image. Higher means less safe.
// The score ranges 0..MaxScore; a transient failure returns a non-nil error
// and callers decide what pending state to leave behind.
type Classifier interface {
	AnalyzeImage(ctx context.Context, image []byte) (float64, error)
}

// MaxScore is the largest danger score the safe-search mapping can produce
// (three categories, 5 points each).
const MaxScore = 15.0

// Likelihood weights for safe-search categories.
func likelihoodScore(likelihood string) float64 {
	switch strings.ToUpper(strings.TrimSpace(likelihood)) {
	case "VERY_LIKELY":
		return 5
	case "LIKELY":
		return 4
	case "POSSIBLE":
		return 3
	case "UNLIKELY":
		return 1
	default: // VERY_UNLIKELY, UNKNOWN, empty
		return 0
	}
}

// HTTPClassifier calls a safe-search annotation service over HTTP. The
// service receives the image as multipart form data and answers with
// per-category likelihoods.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier returns a classifier posting to url with the given timeout.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type safeSearchResponse struct {
	Adult    string `json:"adult"`
	Violence string `json:"violence"`
	Racy     string `json:"racy"`
}

// AnalyzeImage submits the image and sums the category likelihood weights
// into a single danger score.
func (c *HTTPClassifier) AnalyzeImage(ctx context.Context, image []byte) (float64, error) {
	if len(image) == 0 {
		return 0, fmt.Errorf("empty image")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "image")
	if err != nil {
		return 0, err
	}
	if _, err = part.Write(image); err != nil {
		return 0, err
	}
	if err = writer.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("safety classifier unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("safety classifier error: %s - %s", resp.Status, string(b))
	}

	var annotation safeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&annotation); err != nil {
		return 0, fmt.Errorf("invalid classifier response: %w", err)
	}

	score := likelihoodScore(annotation.Adult) +
		likelihoodScore(annotation.Violence) +
		likelihoodScore(annotation.Racy)
	return score, nil
}
