package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
)

// Package classify talks to an external radiograph-type classification
// service. It sorts incoming images into the five radiograph classes that
// the annotation tasks are organized around.

// Labels are the radiograph classes, in the order the model emits them.
var Labels = []string{
	"Periapical",
	"Color Zoom",
	"Panoramic",
	"Bitewing",
	"Color Panoramic",
}

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type Client struct {
	log     logs.Log
	baseURL string
	client  *http.Client
}

// NewClient verifies the service is up and agrees on the label set.
// An unreachable backend is fatal here rather than at first use.
func NewClient(log logs.Log, baseURL string) (*Client, error) {
	c := &Client{
		log:     log,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	resp, err := c.client.Get(baseURL + "/api/v1/labels")
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification service unavailable at %v: %v", baseURL, www.FailedRequestSummary(resp, err))
	}
	defer resp.Body.Close()
	served := struct {
		Labels []string `json:"labels"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&served); err != nil {
		return nil, fmt.Errorf("classification service returned invalid label list: %w", err)
	}
	if len(served.Labels) != len(Labels) {
		return nil, fmt.Errorf("classification service serves %v labels, expected %v", len(served.Labels), len(Labels))
	}
	log.Infof("Classification service at %v (%v labels)", baseURL, len(served.Labels))
	return c, nil
}

type classifyRequest struct {
	Images []string `json:"images"` // base64 PNGs
}

// Classify returns one prediction per input image, in order.
func (c *Client) Classify(ctx context.Context, images []image.Image) ([]Prediction, error) {
	req := classifyRequest{}
	for _, img := range images {
		buf := bytes.Buffer{}
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		req.Images = append(req.Images, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification failed: %v", www.FailedRequestSummary(resp, err))
	}
	defer resp.Body.Close()
	predictions := []Prediction{}
	if err := json.NewDecoder(resp.Body).Decode(&predictions); err != nil {
		return nil, fmt.Errorf("classification service returned invalid predictions: %w", err)
	}
	if len(predictions) != len(images) {
		return nil, fmt.Errorf("classification service returned %v predictions for %v images", len(predictions), len(images))
	}
	return predictions, nil
}
