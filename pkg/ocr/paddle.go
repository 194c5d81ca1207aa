package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"ai-knowledge-be/internal/pkg/logger"
	"ai-knowledge-be/pkg/apperror"
)

// PaddleEngine calls a PaddleOCR serving endpoint over HTTP.
type PaddleEngine struct {
	ServiceURL string
	Client     *http.Client
	logger     logger.ILogger
}

var _ Engine = &PaddleEngine{}

func NewPaddleEngine(serviceURL string, log logger.ILogger) *PaddleEngine {
	return &PaddleEngine{
		ServiceURL: serviceURL,
		Client:     &http.Client{},
		logger:     log,
	}
}

func (p *PaddleEngine) Name() string { return EnginePaddle }

type paddleRequest struct {
	Images          []string           `json:"images"`
	Det             bool               `json:"det"`
	Rec             bool               `json:"rec"`
	Cls             bool               `json:"cls"`
	Lang            string             `json:"lang"`
	ModelConfig     map[string]string  `json:"model_config"`
	ThresholdConfig map[string]float64 `json:"threshold_config"`
}

type paddleResponse struct {
	Results []struct {
		Data []struct {
			Text       string      `json:"text"`
			Points     [][]float64 `json:"points"`
			Confidence float64     `json:"confidence"`
		} `json:"data"`
	} `json:"results"`
}

// Recognize retries transient failures at a fixed interval. cfg.RetryCount is
// the total number of attempts.
func (p *PaddleEngine) Recognize(ctx context.Context, image []byte, cfg Config) (*Result, error) {
	attempts := cfg.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := p.recognizeOnce(ctx, image, cfg)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !apperror.IsRetryable(err) {
			return nil, err
		}

		p.logger.Warn("OCR", "Paddle attempt failed", map[string]interface{}{
			"attempt": attempt,
			"of":      attempts,
			"error":   err.Error(),
		})
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, apperror.Transient(apperror.KindOcrEngineUnavailable, "paddle", ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, lastErr
}

func (p *PaddleEngine) recognizeOnce(ctx context.Context, image []byte, cfg Config) (*Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	payload := paddleRequest{
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Det:    true,
		Rec:    true,
		Cls:    cfg.UseAngleCls,
		Lang:   cfg.Language,
		ModelConfig: map[string]string{
			"det_model_dir": cfg.DetModel,
			"rec_model_dir": cfg.RecModel,
			"cls_model_dir": cfg.ClsModel,
		},
		ThresholdConfig: map[string]float64{
			"det_db_thresh":     cfg.DetThreshold,
			"det_db_box_thresh": cfg.DetThreshold,
			"rec_thresh":        cfg.RecThreshold,
			"cls_thresh":        cfg.ClsThreshold,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindOcrParse, "paddle", fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ServiceURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindOcrEngineUnavailable, "paddle", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, apperror.Transient(apperror.KindOcrEngineUnavailable, "paddle", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Transient(apperror.KindOcrEngineUnavailable, "paddle", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, apperror.Transient(apperror.KindOcrEngineUnavailable, "paddle",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Newf(apperror.KindOcrEngineUnavailable, "paddle", "status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed paddleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperror.Wrap(apperror.KindOcrParse, "paddle", err)
	}

	return p.toResult(parsed, cfg), nil
}

func (p *PaddleEngine) toResult(parsed paddleResponse, cfg Config) *Result {
	res := &Result{
		Language: cfg.Language,
		Metadata: map[string]interface{}{
			"service_url":       p.ServiceURL,
			"detection_model":   cfg.DetModel,
			"recognition_model": cfg.RecModel,
		},
	}
	if len(parsed.Results) == 0 {
		return res
	}

	var lines []string
	var total float64
	for _, item := range parsed.Results[0].Data {
		res.TextBlocks = append(res.TextBlocks, TextBlock{
			Text:        item.Text,
			Confidence:  item.Confidence,
			BoundingBox: boxFromPoints(item.Points),
			Orientation: "horizontal",
		})
		lines = append(lines, item.Text)
		total += item.Confidence
	}
	res.Text = strings.Join(lines, "\n")
	if n := len(res.TextBlocks); n > 0 {
		res.Confidence = total / float64(n)
	}
	return res
}

func boxFromPoints(points [][]float64) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pt := range points {
		if len(pt) < 2 {
			continue
		}
		minX = math.Min(minX, pt[0])
		minY = math.Min(minY, pt[1])
		maxX = math.Max(maxX, pt[0])
		maxY = math.Max(maxY, pt[1])
	}
	if math.IsInf(minX, 1) {
		return BoundingBox{}
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
