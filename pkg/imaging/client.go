// Package imaging は画像合成サービス (Stability 互換の REST API) のクライアントです。
package imaging

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
	"strconv"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/httpkit"
)

// Operation は画像合成サービスの機能です。
type Operation string

const (
	OpGenerate  Operation = "generate"
	OpStyle     Operation = "control-style"
	OpStructure Operation = "control-structure"
	OpSketch    Operation = "control-sketch"
	OpUpscale   Operation = "upscale"
)

const (
	DefaultBaseURL      = "https://api.stability.ai"
	DefaultModel        = "sd3.5-large"
	DefaultOutputFormat = "png"
	defaultTimeout      = 120 * time.Second

	// FinishContentFiltered は 200 応答でもモデレーションで除外されたことを示します。
	FinishContentFiltered = "CONTENT_FILTERED"
	FinishSuccess         = "SUCCESS"
)

var defaultPaths = map[Operation]string{
	OpGenerate:  "/v2beta/stable-image/generate/sd3",
	OpStyle:     "/v2beta/stable-image/control/style",
	OpStructure: "/v2beta/stable-image/control/structure",
	OpSketch:    "/v2beta/stable-image/control/sketch",
	OpUpscale:   "/v2beta/stable-image/upscale/conservative",
}

// strength を送るときのフィールド名。
var strengthFields = map[Operation]string{
	OpStyle:     "fidelity",
	OpStructure: "control_strength",
	OpSketch:    "control_strength",
	OpUpscale:   "creativity",
}

// Request は 1 回の画像合成呼び出しです。
type Request struct {
	Operation      Operation
	Prompt         string
	NegativePrompt string
	Image          []byte
	// ControlImage は構図制御で使う構図マップです。Image は前段の出力のままです。
	ControlImage []byte
	Strength     *float64
	Seed         *int64
	Model        string
}

// Response は合成結果です。Seed と FinishReason は常に埋まります。
type Response struct {
	Data         []byte
	MimeType     string
	Seed         int64
	FinishReason string
}

// Service は画像合成サービスの契約です。
type Service interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Config は接続設定です。
type Config struct {
	BaseURL      string
	APIKey       string
	OutputFormat string
	// HTTPClient はリトライしない Doer を想定します。再試行はセッションのリトライ方針に任せます。
	HTTPClient httpkit.Doer
}

// Client は Service の HTTP 実装です。
type Client struct {
	httpClient   httpkit.Doer
	baseURL      string
	apiKey       string
	outputFormat string
}

// NewClient は Client を返します。
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("IMAGE_API_KEY は必須です")
	}
	c := &Client{
		httpClient:   cfg.HTTPClient,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		outputFormat: cfg.OutputFormat,
	}
	if c.httpClient == nil {
		c.httpClient = httpkit.New(defaultTimeout)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.outputFormat == "" {
		c.outputFormat = DefaultOutputFormat
	}
	return c, nil
}

type apiResponse struct {
	Image        string `json:"image"`
	FinishReason string `json:"finish_reason"`
	Seed         int64  `json:"seed"`
}

// Generate は 1 回の合成を実行します。
// 403 と CONTENT_FILTERED はモデレーション、429 はレート制限の StatusError になります。
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	path, ok := defaultPaths[req.Operation]
	if !ok {
		return nil, fmt.Errorf("未対応の操作です: %q", req.Operation)
	}
	if req.Operation != OpGenerate && len(req.Image) == 0 {
		return nil, fmt.Errorf("%s には入力画像が必要です", req.Operation)
	}

	body, contentType, err := c.encode(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		b, _ := httpkit.HandleLimitedResponse(resp, httpkit.MaxBodyDisplaySize)
		return nil, &StatusError{
			Operation:  req.Operation,
			StatusCode: resp.StatusCode,
			Class:      ClassifyStatus(resp.StatusCode),
			Body:       string(b),
		}
	}

	raw, err := httpkit.HandleResponse(resp)
	if err != nil {
		return nil, err
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	if out.FinishReason == FinishContentFiltered {
		return nil, &StatusError{
			Operation:  req.Operation,
			StatusCode: resp.StatusCode,
			Class:      ClassModeration,
			Body:       out.FinishReason,
		}
	}

	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("画像データのデコードに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("画像データが空です")
	}

	return &Response{
		Data:         data,
		MimeType:     "image/" + c.outputFormat,
		Seed:         out.Seed,
		FinishReason: out.FinishReason,
	}, nil
}

func (c *Client) encode(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"prompt":        req.Prompt,
		"output_format": c.outputFormat,
	}
	if req.NegativePrompt != "" {
		fields["negative_prompt"] = req.NegativePrompt
	}
	if req.Seed != nil {
		fields["seed"] = strconv.FormatInt(*req.Seed, 10)
	}
	if req.Operation == OpGenerate {
		model := req.Model
		if model == "" {
			model = DefaultModel
		}
		fields["model"] = model
	}
	if name, ok := strengthFields[req.Operation]; ok && req.Strength != nil {
		fields[name] = strconv.FormatFloat(clamp01(*req.Strength), 'f', 2, 64)
	}

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("multipart フィールドの書き込みに失敗しました: %w", err)
		}
	}
	if len(req.Image) > 0 {
		part, err := w.CreateFormFile("image", "image."+c.outputFormat)
		if err != nil {
			return nil, "", fmt.Errorf("multipart 画像の作成に失敗しました: %w", err)
		}
		if _, err := part.Write(req.Image); err != nil {
			return nil, "", fmt.Errorf("multipart 画像の書き込みに失敗しました: %w", err)
		}
	}
	if len(req.ControlImage) > 0 && req.Operation.acceptsControl() {
		part, err := w.CreateFormFile("control_image", "control."+c.outputFormat)
		if err != nil {
			return nil, "", fmt.Errorf("multipart 構図マップの作成に失敗しました: %w", err)
		}
		if _, err := part.Write(req.ControlImage); err != nil {
			return nil, "", fmt.Errorf("multipart 構図マップの書き込みに失敗しました: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (op Operation) acceptsControl() bool {
	return op == OpStructure || op == OpSketch
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
