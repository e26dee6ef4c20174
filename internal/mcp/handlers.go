package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// ScoreRequest represents the arguments for classify_score.
type ScoreRequest struct {
	Text string `json:"text"`
	Top  int    `json:"top,omitempty"`
}

// LabelRequest represents the arguments for classify_label.
type LabelRequest struct {
	Text       string   `json:"text"`
	Label      string   `json:"label,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Manual     bool     `json:"manual,omitempty"`
}

// LearnRequest represents the arguments for memory_learn.
type LearnRequest struct {
	Text  string            `json:"text"`
	URL   string            `json:"url,omitempty"`
	Extra map[string]string `json:"extra,omitempty"`
}

// IngestRequest represents the arguments for memory_ingest.
type IngestRequest struct {
	Paths []string `json:"paths"`
}

// QueryRequest represents the arguments for memory_query.
type QueryRequest struct {
	Text string `json:"text"`
	K    int    `json:"k,omitempty"`
}

// AskRequest represents the arguments for memory_ask.
type AskRequest struct {
	Text string `json:"text"`
}

// MergeRequest represents the arguments for dataset_merge.
type MergeRequest struct {
	Retrain bool `json:"retrain,omitempty"`
}

// DoctorRequest represents the arguments for dataset_doctor.
type DoctorRequest struct {
	Relabel     []string `json:"relabel,omitempty"`
	Drop        []string `json:"drop,omitempty"`
	DropInvalid bool     `json:"drop_invalid,omitempty"`
	Apply       bool     `json:"apply,omitempty"`
}

// Handler implementations

// HandleScore handles the classify_score tool call.
func (h *Handlers) HandleScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Score(ctx, h.env, ops.ScoreInput{Text: input.Text, Top: input.Top})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLabel handles the classify_label tool call.
func (h *Handlers) HandleLabel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LabelRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Label(ctx, h.env, ops.LabelInput{
		Text:       input.Text,
		Label:      input.Label,
		Confidence: input.Confidence,
		Manual:     input.Manual,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTrain handles the classify_train tool call.
func (h *Handlers) HandleTrain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Train(ctx, h.env, ops.TrainInput{})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLearn handles the memory_learn tool call.
func (h *Handlers) HandleLearn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LearnRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Learn(ctx, h.env, ops.LearnInput{
		Text:  input.Text,
		URL:   input.URL,
		Extra: input.Extra,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleIngest handles the memory_ingest tool call.
func (h *Handlers) HandleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IngestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Ingest(ctx, h.env, ops.IngestInput{Paths: input.Paths})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleQuery handles the memory_query tool call.
func (h *Handlers) HandleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QueryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.MemoryQuery(ctx, h.env, ops.MemoryQueryInput{Text: input.Text, K: input.K})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAsk handles the memory_ask tool call.
func (h *Handlers) HandleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AskRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Ask(ctx, h.env, ops.AskInput{Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStats handles the memory_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.MemoryStats(ctx, h.env, ops.MemoryStatsInput{})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMerge handles the dataset_merge tool call.
func (h *Handlers) HandleMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MergeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Merge(ctx, h.env, ops.MergeInput{Retrain: input.Retrain})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDoctor handles the dataset_doctor tool call.
func (h *Handlers) HandleDoctor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DoctorRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	relabel, err := ops.ParseRelabel(input.Relabel)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Doctor(ctx, h.env, ops.DoctorInput{
		Relabel:     relabel,
		Drop:        input.Drop,
		DropInvalid: input.DropInvalid,
		Apply:       input.Apply,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if siftErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    siftErr.Code,
			"message": siftErr.Message,
			"status":  siftErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if siftErr.Code != errors.ErrInternal && siftErr.Details != nil {
			errorObj["details"] = siftErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
