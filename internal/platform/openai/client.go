package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/telansky/multigpt/internal/observability"
	"github.com/telansky/multigpt/internal/platform/ctxutil"
	"github.com/telansky/multigpt/internal/platform/envutil"
	"github.com/telansky/multigpt/internal/platform/httpx"
	"github.com/telansky/multigpt/internal/platform/logger"
)

// PurposeUserData is the upload purpose for files referenced from prompts.
const PurposeUserData = "user_data"

// Config is the explicit client configuration. Build one with
// ConfigFromEnv in wiring code or by hand in tests.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds file and transcription calls.
	Timeout time.Duration
	// ResponsesTimeout bounds /v1/responses calls, which routinely run
	// far longer than the rest of the API.
	ResponsesTimeout time.Duration
	Retry            httpx.RetryPolicy
	// Temperature, when set, is sent on responses calls. Models that
	// reject the parameter are retried once without it and remembered.
	Temperature *float64
}

func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:           strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:          envutil.Str("OPENAI_BASE_URL", "https://api.openai.com"),
		Timeout:          envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		ResponsesTimeout: envutil.Seconds("OPENAI_RESPONSES_TIMEOUT_SECONDS", 0),
		Retry: httpx.RetryPolicy{
			MaxRetries:     envutil.Int("OPENAI_MAX_RETRIES", 4),
			InitialBackoff: envutil.Seconds("OPENAI_BACKOFF_INITIAL_SECONDS", time.Second),
			MaxBackoff:     envutil.Seconds("OPENAI_BACKOFF_MAX_SECONDS", 30*time.Second),
			Jitter:         envutil.Float("OPENAI_RETRY_JITTER", 0.25),
		},
	}
	if cfg.ResponsesTimeout <= 0 {
		cfg.ResponsesTimeout = cfg.Timeout
		if cfg.ResponsesTimeout < 600*time.Second {
			cfg.ResponsesTimeout = 600 * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = &f
		}
	}
	return cfg
}

type partKind int

const (
	partText partKind = iota
	partImage
	partFile
	partBlob
)

// Part is one element of a prompt's content. Text, image and file parts
// are sent as-is; blob parts are staged to the Files API before the
// first attempt and referenced by the returned file id.
type Part struct {
	kind     partKind
	text     string
	imageURL string
	detail   string
	fileID   string
	blobName string
	blobData []byte
}

func TextPart(text string) Part { return Part{kind: partText, text: text} }

// ImagePart accepts https:// URLs and data: URLs.
func ImagePart(imageURL string) Part { return Part{kind: partImage, imageURL: imageURL} }

func ImagePartWithDetail(imageURL, detail string) Part {
	return Part{kind: partImage, imageURL: imageURL, detail: detail}
}

// FilePart references a file already uploaded by the caller. The caller
// owns that handle's deletion.
func FilePart(fileID string) Part { return Part{kind: partFile, fileID: fileID} }

// BlobPart hands raw bytes to the client, which stages them once before
// the first attempt and deletes the staged file when the call finishes.
func BlobPart(filename string, data []byte) Part {
	return Part{kind: partBlob, blobName: filename, blobData: data}
}

type GenerateRequest struct {
	Model string
	// System becomes a system message when non-empty.
	System string
	Parts  []Part
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type GenerateResult struct {
	Text  string
	Usage Usage
}

// Client is the upstream model API surface the pipelines consume.
type Client interface {
	// Generate runs one resilient responses call: transient failures are
	// retried with exponential backoff, staged blobs are deleted on every
	// exit path.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// Transcribe converts an audio file to text. Single attempt: a
	// transcription failure is fatal to the calling pipeline.
	Transcribe(ctx context.Context, audioPath string, model string) (string, error)

	UploadFile(ctx context.Context, filename string, data []byte, purpose string) (string, error)

	// DeleteFile is idempotent: deleting a missing file is not an error.
	DeleteFile(ctx context.Context, fileID string) error
}

type client struct {
	log             *logger.Logger
	baseURL         string
	apiKey          string
	httpClient      *http.Client
	responsesClient *http.Client
	policy          httpx.RetryPolicy
	temperature     *float64

	// Models that rejected the temperature parameter; omitted thereafter.
	noTempMu   sync.Mutex
	noTempSeen map[string]bool
}

func NewClient(cfg Config, log *logger.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	responsesTimeout := cfg.ResponsesTimeout
	if responsesTimeout <= 0 {
		responsesTimeout = timeout
	}
	policy := cfg.Retry
	if policy == (httpx.RetryPolicy{}) {
		policy = httpx.DefaultRetryPolicy()
	}
	return &client{
		log:             log.With("service", "OpenAIClient"),
		baseURL:         baseURL,
		apiKey:          cfg.APIKey,
		httpClient:      &http.Client{Timeout: timeout},
		responsesClient: &http.Client{Timeout: responsesTimeout},
		policy:          policy,
		temperature:     cfg.Temperature,
		noTempSeen:      map[string]bool{},
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// apiCall carries one prepared request body through the retry loop.
// payload is replayed from memory, so every attempt sends identical bytes.
type apiCall struct {
	method      string
	path        string
	contentType string
	payload     []byte
	// model labels metrics; empty for file management calls.
	model string
}

func (c *client) doOnce(ctx context.Context, httpClient *http.Client, call apiCall) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, call.method, c.baseURL+call.path, bytes.NewReader(call.payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if call.contentType != "" {
		req.Header.Set("Content-Type", call.contentType)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// doCall is the one retry loop every API call goes through. Failures are
// classified by httpx.IsRetryableError; retryable ones sleep on
// exponential backoff with jitter (honoring Retry-After) and try again,
// anything else returns immediately. Exhaustion reports how many
// attempts were made.
func (c *client) doCall(ctx context.Context, httpClient *http.Client, policy httpx.RetryPolicy, call apiCall, out any) error {
	start := time.Now()

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, raw, err := c.doOnce(ctx, httpClient, call)
		if err == nil {
			if metrics := observability.Current(); metrics != nil {
				inputTokens, outputTokens := extractUsageFromRaw(raw)
				metrics.ObserveLLMRequest(call.model, call.path, statusFromResp(resp), time.Since(start), inputTokens, outputTokens)
			}
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			if metrics := observability.Current(); metrics != nil {
				metrics.ObserveLLMRequest(call.model, call.path, statusFromRespErr(resp, err), time.Since(start), 0, 0)
			}
			return err
		}
		if attempt == policy.MaxRetries {
			if metrics := observability.Current(); metrics != nil {
				metrics.ObserveLLMRequest(call.model, call.path, statusFromRespErr(resp, err), time.Since(start), 0, 0)
			}
			if policy.MaxRetries == 0 {
				return err
			}
			return fmt.Errorf("openai %s failed after %d attempts: %w", call.path, attempt+1, err)
		}

		sleepFor := httpx.RetryAfterDuration(resp, policy.Backoff(attempt), policy.MaxBackoff)
		sleepFor = policy.Jittered(sleepFor)

		if metrics := observability.Current(); metrics != nil {
			metrics.ObserveLLMRetry(call.model, call.path)
		}
		c.log.Warn("openai request retrying",
			"path", call.path,
			"attempt", attempt+1,
			"max_retries", policy.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) doJSON(ctx context.Context, httpClient *http.Client, policy httpx.RetryPolicy, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	call := apiCall{
		method:      method,
		path:        path,
		contentType: "application/json",
		payload:     payload,
		model:       extractModelFromRequest(body),
	}
	if body == nil {
		call.contentType = ""
	}
	return c.doCall(ctx, httpClient, policy, call, out)
}

// -------------------- Responses API --------------------

type responsesMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model       string             `json:"model"`
	Input       []responsesMessage `json:"input"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
	Usage   struct {
		InputTokens      int `json:"input_tokens"`
		OutputTokens     int `json:"output_tokens"`
		TotalTokens      int `json:"total_tokens"`
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func usageFromResponse(resp responsesResponse) Usage {
	u := Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		u.InputTokens = resp.Usage.PromptTokens
		u.OutputTokens = resp.Usage.CompletionTokens
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

// stagedFile tracks one blob uploaded for a Generate call. deleted stops
// a second deletion once cleanup has run for the handle.
type stagedFile struct {
	id      string
	name    string
	deleted bool
}

func (c *client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, errors.New("openai: model required")
	}
	if len(req.Parts) == 0 {
		return nil, errors.New("openai: request has no content")
	}

	// Staging happens once, before any attempt; retries reuse the same
	// handles. Cleanup runs on every exit path and never overrides the
	// primary error.
	var staged []*stagedFile
	defer func() { c.cleanupStaged(ctxutil.Detach(ctx), staged) }()

	content, stagedFiles, err := c.stageParts(ctx, req.Parts)
	staged = stagedFiles
	if err != nil {
		return nil, err
	}

	rreq := &responsesRequest{Model: model}
	if s := strings.TrimSpace(req.System); s != "" {
		rreq.Input = append(rreq.Input, responsesMessage{Role: "system", Content: s})
	}
	rreq.Input = append(rreq.Input, responsesMessage{Role: "user", Content: content})
	c.applyTemperature(rreq)

	var resp responsesResponse
	if err := c.doResponsesWithTempFallback(ctx, rreq, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}

	text := extractOutputText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no output_text found in response")
	}
	return &GenerateResult{Text: text, Usage: usageFromResponse(resp)}, nil
}

// stageParts uploads blob parts and renders the user content. A lone
// text part stays a plain string; everything else becomes a content
// list. Already-staged files are returned even when a later upload
// fails, so the caller's cleanup still sees them.
func (c *client) stageParts(ctx context.Context, parts []Part) (any, []*stagedFile, error) {
	if len(parts) == 1 && parts[0].kind == partText {
		return parts[0].text, nil, nil
	}

	var staged []*stagedFile
	content := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		switch p.kind {
		case partText:
			content = append(content, map[string]any{
				"type": "input_text",
				"text": p.text,
			})
		case partImage:
			u := strings.TrimSpace(p.imageURL)
			if u == "" {
				continue
			}
			item := map[string]any{
				"type":      "input_image",
				"image_url": u,
			}
			if d := strings.TrimSpace(p.detail); d != "" {
				item["detail"] = d
			}
			content = append(content, item)
		case partFile:
			content = append(content, map[string]any{
				"type":    "input_file",
				"file_id": p.fileID,
			})
		case partBlob:
			fileID, err := c.UploadFile(ctx, p.blobName, p.blobData, PurposeUserData)
			if err != nil {
				return nil, staged, fmt.Errorf("stage %s: %w", p.blobName, err)
			}
			staged = append(staged, &stagedFile{id: fileID, name: p.blobName})
			content = append(content, map[string]any{
				"type":    "input_file",
				"file_id": fileID,
			})
		}
	}
	if len(content) == 0 {
		return nil, staged, errors.New("openai: request has no content")
	}
	return content, staged, nil
}

func (c *client) cleanupStaged(ctx context.Context, staged []*stagedFile) {
	for _, f := range staged {
		if f == nil || f.deleted || f.id == "" {
			continue
		}
		f.deleted = true
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := c.DeleteFile(dctx, f.id)
		cancel()
		if metrics := observability.Current(); metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.ObserveRemoteFileCleanup(status)
		}
		if err != nil {
			c.log.Warn("staged file cleanup failed", "file_id", f.id, "name", f.name, "error", err.Error())
		}
	}
}

func (c *client) doResponses(ctx context.Context, req *responsesRequest, out *responsesResponse) error {
	httpClient := c.responsesClient
	if httpClient == nil {
		httpClient = c.httpClient
	}
	return c.doJSON(ctx, httpClient, c.policy, "POST", "/v1/responses", req, out)
}

// doResponsesWithTempFallback retries exactly once without temperature
// when the model rejects the parameter, and remembers the model.
func (c *client) doResponsesWithTempFallback(ctx context.Context, req *responsesRequest, out *responsesResponse) error {
	err := c.doResponses(ctx, req, out)
	if err == nil || req.Temperature == nil || !isUnsupportedTemperatureParam(err) {
		return err
	}
	c.noteNoTempModel(req.Model)
	req.Temperature = nil
	return c.doResponses(ctx, req, out)
}

func (c *client) applyTemperature(req *responsesRequest) {
	if req == nil || c.temperature == nil {
		return
	}
	if c.modelIsNoTemp(req.Model) {
		return
	}
	req.Temperature = c.temperature
}

func (c *client) modelIsNoTemp(model string) bool {
	key := strings.ToLower(strings.TrimSpace(model))
	if key == "" {
		return false
	}
	c.noTempMu.Lock()
	defer c.noTempMu.Unlock()
	return c.noTempSeen[key]
}

func (c *client) noteNoTempModel(model string) {
	key := strings.ToLower(strings.TrimSpace(model))
	if key == "" {
		return
	}
	c.noTempMu.Lock()
	c.noTempSeen[key] = true
	c.noTempMu.Unlock()
}

func isUnsupportedTemperatureParam(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "temperature") {
		return false
	}
	switch {
	case strings.Contains(msg, "unsupported parameter"),
		strings.Contains(msg, "unknown parameter"),
		strings.Contains(msg, "not supported"),
		strings.Contains(msg, "does not support"),
		strings.Contains(msg, "only the default"),
		strings.Contains(msg, "unsupported_value"):
		return true
	default:
		return false
	}
}

// -------------------- Files API --------------------

type fileObject struct {
	ID string `json:"id"`
}

type fileDeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (c *client) UploadFile(ctx context.Context, filename string, data []byte, purpose string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("openai: empty file upload")
	}
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		purpose = PurposeUserData
	}
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		name = "upload.bin"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", purpose); err != nil {
		return "", err
	}
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var out fileObject
	call := apiCall{
		method:      "POST",
		path:        "/v1/files",
		contentType: w.FormDataContentType(),
		payload:     buf.Bytes(),
	}
	if err := c.doCall(ctx, c.httpClient, c.policy, call, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("openai: file upload returned no id")
	}
	return out.ID, nil
}

func (c *client) DeleteFile(ctx context.Context, fileID string) error {
	id := strings.TrimSpace(fileID)
	if id == "" {
		return nil
	}
	var out fileDeleteResponse
	err := c.doJSON(ctx, c.httpClient, c.policy, "DELETE", "/v1/files/"+url.PathEscape(id), nil, &out)
	if err != nil {
		var httpErr *openAIHTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

// -------------------- Audio transcriptions --------------------

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *client) Transcribe(ctx context.Context, audioPath string, model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("openai: transcription model required")
	}
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("read audio: %s is empty", audioPath)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model", model); err != nil {
		return "", err
	}
	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var out transcriptionResponse
	call := apiCall{
		method:      "POST",
		path:        "/v1/audio/transcriptions",
		contentType: w.FormDataContentType(),
		payload:     buf.Bytes(),
		model:       model,
	}
	// Single attempt: pipelines treat a transcription failure as fatal
	// rather than stacking a second retry loop under Generate's.
	if err := c.doCall(ctx, c.httpClient, httpx.RetryPolicy{}, call, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", errors.New("openai: transcription returned no text")
	}
	return out.Text, nil
}

// -------------------- Helpers --------------------

func extractUsageFromRaw(raw []byte) (int, int) {
	if len(raw) == 0 {
		return 0, 0
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, 0
	}
	usageAny, ok := payload["usage"]
	if !ok || usageAny == nil {
		return 0, 0
	}
	usage, ok := usageAny.(map[string]any)
	if !ok {
		return 0, 0
	}
	inTokens := intFromAny(usage["input_tokens"])
	outTokens := intFromAny(usage["output_tokens"])
	if inTokens == 0 && outTokens == 0 {
		inTokens = intFromAny(usage["prompt_tokens"])
		outTokens = intFromAny(usage["completion_tokens"])
	}
	return inTokens, outTokens
}

func intFromAny(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return 0
}

func extractModelFromRequest(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case *responsesRequest:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(v.Model)
	case responsesRequest:
		return strings.TrimSpace(v.Model)
	}
	return ""
}

func statusFromResp(resp *http.Response) string {
	if resp == nil {
		return "unknown"
	}
	return strconv.Itoa(resp.StatusCode)
}

func statusFromRespErr(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	var httpErr *openAIHTTPError
	if err != nil && errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
