package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"reqgather/internal/interview"
	"reqgather/internal/session"
)

type TurnParams struct {
	SessionID string  `json:"session_id" mcp:"interview session id"`
	Answer    *string `json:"answer,omitempty" mcp:"answer to the last question; omit on the first turn"`
}

type SessionParams struct {
	SessionID string `json:"session_id" mcp:"interview session id"`
}

type engine interface {
	Turn(ctx context.Context, req interview.TurnRequest) (interview.TurnResponse, error)
	State(ctx context.Context, id string) (session.State, error)
	Reset(ctx context.Context, id string) error
}

type tools struct {
	engine engine
	log    *zap.Logger
}

func (t *tools) Turn(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[TurnParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	t.log.Info("💬 interview_turn", zap.String("session_id", args.SessionID), zap.Bool("has_answer", args.Answer != nil))
	resp, err := t.engine.Turn(ctx, interview.TurnRequest{SessionID: args.SessionID, Answer: args.Answer})
	if err != nil {
		return failure("turn", err), nil
	}
	return jsonResult(resp)
}

func (t *tools) State(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	st, err := t.engine.State(ctx, params.Arguments.SessionID)
	if err != nil {
		return failure("state", err), nil
	}
	return jsonResult(st)
}

func (t *tools) Reset(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	id := params.Arguments.SessionID
	if err := t.engine.Reset(ctx, id); err != nil {
		return failure("reset", err), nil
	}
	t.log.Info("🔄 interview_reset", zap.String("session_id", id))
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("✅ Session %s reset", id)}},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResultFor[any], error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil
}

func failure(op string, err error) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("❌ %s failed: %v", op, err)}},
	}
}
