package segment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"

	"github.com/dentamark/dentamark/pkg/anno"
)

// Package segment talks to an external segmentation inference service:
// point prompts in, binary mask out. The model runs out of process; we
// treat it as a pure function over (image, points).

// ModelSize selects the checkpoint the service should use.
type ModelSize string

const (
	ModelTiny     ModelSize = "tiny"
	ModelSmall    ModelSize = "small"
	ModelBasePlus ModelSize = "base_plus"
	ModelLarge    ModelSize = "large"
)

// foregroundLabel marks a prompt point as foreground. Every click in the
// annotation UI is a foreground prompt; background points are not exposed.
const foregroundLabel = 1

type Client struct {
	log     logs.Log
	baseURL string
	model   ModelSize
	client  *http.Client
}

type modelsResponse struct {
	Models []string `json:"models"`
}

// NewClient verifies that the service is reachable and serves the requested
// model size. A missing backend or model is an error here, at construction,
// rather than a degenerate prediction later.
func NewClient(log logs.Log, baseURL string, model ModelSize) (*Client, error) {
	c := &Client{
		log:     log,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	resp, err := c.client.Get(baseURL + "/api/v1/models")
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("segmentation service unavailable at %v: %v", baseURL, www.FailedRequestSummary(resp, err))
	}
	defer resp.Body.Close()
	models := modelsResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("segmentation service returned invalid model list: %w", err)
	}
	for _, m := range models.Models {
		if m == string(model) {
			log.Infof("Segmentation service at %v, model %v", baseURL, model)
			return c, nil
		}
	}
	return nil, fmt.Errorf("segmentation service at %v does not serve model %v (has %v)", baseURL, model, models.Models)
}

type predictRequest struct {
	Image  string       `json:"image"` // base64 PNG
	Points []anno.Point `json:"points"`
	Labels []int        `json:"labels"`
}

// Predict sends the image and prompt points to the service and decodes the
// returned mask. The mask has the same dimensions as the input image;
// pixels >= 128 are part of the predicted object.
func (c *Client) Predict(ctx context.Context, img image.Image, points []anno.Point) (*image.Gray, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no prompt points")
	}
	pngBuf := bytes.Buffer{}
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, err
	}
	req := predictRequest{
		Image:  base64.StdEncoding.EncodeToString(pngBuf.Bytes()),
		Points: points,
		Labels: make([]int, len(points)),
	}
	for i := range req.Labels {
		req.Labels[i] = foregroundLabel
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%v/api/v1/predict?model=%v", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("segmentation predict failed: %v", www.FailedRequestSummary(resp, err))
	}
	defer resp.Body.Close()
	maskImg, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("segmentation service returned invalid mask: %w", err)
	}
	return toGray(maskImg), nil
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
