package semantic

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/borealmotors/reconcile-cli/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// textResponse wraps body in a single text content block.
func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_test",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: body}},
		StopReason: "end_turn",
	}
}
