// internal/backend/comfyui.go

// Package backend holds clients for local generation backends. ComfyUI is the
// only one today: a node-graph diffusion server driven over its HTTP API.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Failure classes callers branch on. Unavailable means the daemon is not
// reachable at all; timeout means it accepted the connection but the request
// ran out of budget; anything else is a rejected submission.
var (
	ErrUnavailable = errors.New("comfyui backend unavailable")
	ErrTimeout     = errors.New("comfyui request timed out")
)

// Workflow is a ComfyUI node graph keyed by node id.
type Workflow map[string]Node

// Node is one graph node: a class type plus its input map. Inputs reference
// other nodes as [nodeID, outputIndex] pairs.
type Node struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
}

// Client talks to a ComfyUI daemon.
type Client struct {
	baseURL       string
	healthTimeout time.Duration
	submitTimeout time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient initializes the client. Zero timeouts fall back to 5s for health
// checks and 60s for submissions.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = 5 * time.Second
	}
	submitTimeout := cfg.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 60 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		healthTimeout: healthTimeout,
		submitTimeout: submitTimeout,
		httpClient:    &http.Client{},
		logger:        logger.Named("backend.comfyui"),
	}
}

// Health probes the daemon's stats endpoint. A reachable daemon answering
// anything other than 200 is still treated as unavailable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/system_stats", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

type submitRequest struct {
	Prompt Workflow `json:"prompt"`
}

type submitResponse struct {
	PromptID string `json:"prompt_id"`
}

// Submit queues a workflow and returns its prompt id.
func (c *Client) Submit(ctx context.Context, wf Workflow) (string, error) {
	body, err := json.Marshal(submitRequest{Prompt: wf})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.submitTimeout)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("comfyui rejected the workflow: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var payload submitResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if payload.PromptID == "" {
		return "", fmt.Errorf("comfyui returned no prompt id")
	}

	c.logger.Info("Workflow queued.",
		zap.String("prompt_id", payload.PromptID),
		zap.Duration("duration", time.Since(start)),
	)
	return payload.PromptID, nil
}

const (
	videoFPS        = 8
	defaultDuration = 5
)

// TextToVideoWorkflow builds the txt2vid graph. Duration is carried as a
// frame count (duration * fps) on the latent video node.
func TextToVideoWorkflow(prompt string, durationSec int, seed int64) Workflow {
	if durationSec <= 0 {
		durationSec = defaultDuration
	}
	return Workflow{
		"3": {
			ClassType: "KSampler",
			Inputs: map[string]interface{}{
				"seed":         seed,
				"steps":        20,
				"cfg":          7.0,
				"sampler_name": "euler",
				"scheduler":    "normal",
				"denoise":      1.0,
				"model":        []interface{}{"4", 0},
				"positive":     []interface{}{"6", 0},
				"negative":     []interface{}{"7", 0},
				"latent_image": []interface{}{"5", 0},
			},
		},
		"4": {
			ClassType: "CheckpointLoaderSimple",
			Inputs: map[string]interface{}{
				"ckpt_name": "svd_xt_1_1.safetensors",
			},
		},
		"5": {
			ClassType: "EmptyLatentVideo",
			Inputs: map[string]interface{}{
				"width":      1024,
				"height":     576,
				"length":     durationSec * videoFPS,
				"batch_size": 1,
			},
		},
		"6": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]interface{}{
				"text": prompt,
				"clip": []interface{}{"4", 1},
			},
		},
		"7": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]interface{}{
				"text": "blurry, low quality, watermark",
				"clip": []interface{}{"4", 1},
			},
		},
		"8": {
			ClassType: "VAEDecode",
			Inputs: map[string]interface{}{
				"samples": []interface{}{"3", 0},
				"vae":     []interface{}{"4", 2},
			},
		},
		"9": {
			ClassType: "SaveAnimatedWEBP",
			Inputs: map[string]interface{}{
				"filename_prefix": "genweaver_" + strconv.FormatInt(seed, 10),
				"fps":             videoFPS,
				"lossless":        false,
				"quality":         85,
				"images":          []interface{}{"8", 0},
			},
		},
	}
}

// TextToImageWorkflow builds the standard txt2img graph: checkpoint, prompt
// conditioning, sampler, VAE decode, save.
func TextToImageWorkflow(prompt string, width, height int, seed int64) Workflow {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	return Workflow{
		"3": {
			ClassType: "KSampler",
			Inputs: map[string]interface{}{
				"seed":         seed,
				"steps":        20,
				"cfg":          7.0,
				"sampler_name": "euler",
				"scheduler":    "normal",
				"denoise":      1.0,
				"model":        []interface{}{"4", 0},
				"positive":     []interface{}{"6", 0},
				"negative":     []interface{}{"7", 0},
				"latent_image": []interface{}{"5", 0},
			},
		},
		"4": {
			ClassType: "CheckpointLoaderSimple",
			Inputs: map[string]interface{}{
				"ckpt_name": "sd_xl_base_1.0.safetensors",
			},
		},
		"5": {
			ClassType: "EmptyLatentImage",
			Inputs: map[string]interface{}{
				"width":      width,
				"height":     height,
				"batch_size": 1,
			},
		},
		"6": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]interface{}{
				"text": prompt,
				"clip": []interface{}{"4", 1},
			},
		},
		"7": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]interface{}{
				"text": "blurry, low quality, watermark",
				"clip": []interface{}{"4", 1},
			},
		},
		"8": {
			ClassType: "VAEDecode",
			Inputs: map[string]interface{}{
				"samples": []interface{}{"3", 0},
				"vae":     []interface{}{"4", 2},
			},
		},
		"9": {
			ClassType: "SaveImage",
			Inputs: map[string]interface{}{
				"filename_prefix": "genweaver_" + strconv.FormatInt(seed, 10),
				"images":          []interface{}{"8", 0},
			},
		},
	}
}
