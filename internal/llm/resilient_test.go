package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/internal/llm/fake"
	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResilientChatModelRetriesThenWrapsServiceError(t *testing.T) {
	calls := 0
	inner := fake.NewChatModel(func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		calls++
		return nil, errors.New("429 rate limited")
	})
	m := NewResilientChatModel(inner, NewRetryer(fastPolicy(3), zap.NewNop()), time.Second, "quick")

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	var se *models.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "completion quick", se.Op)
	assert.Equal(t, 3, calls)
}

func TestResilientChatModelTreatsEmptyAsMalformed(t *testing.T) {
	calls := 0
	inner := fake.NewChatModel(func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		calls++
		if calls == 1 {
			return schema.AssistantMessage("", nil), nil
		}
		return schema.AssistantMessage("answer", nil), nil
	})
	m := NewResilientChatModel(inner, NewRetryer(fastPolicy(3), nil), 0, "quick")

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "answer", msg.Content)
}

func TestResilientChatModelWithToolsKeepsPolicy(t *testing.T) {
	inner := fake.Text("ok")
	m := NewResilientChatModel(inner, NewRetryer(fastPolicy(1), nil), time.Second, "quick")
	bound, err := m.WithTools([]*schema.ToolInfo{{Name: "t"}})
	require.NoError(t, err)
	_, ok := bound.(*ResilientChatModel)
	assert.True(t, ok)
}

func TestResilientEmbedder(t *testing.T) {
	inner := &fake.Embedder{Err: errors.New("down")}
	e := NewResilientEmbedder(inner, NewRetryer(fastPolicy(2), nil), time.Second)
	_, err := e.EmbedStrings(context.Background(), []string{"a"})
	assert.True(t, models.IsServiceError(err))
	assert.Equal(t, 2, inner.Calls())

	inner.Err = nil
	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

type echoInput struct {
	Symbol string `json:"symbol"`
}

func TestResilientToolWrapsToolError(t *testing.T) {
	calls := 0
	inner, err := utils.InferTool("get_market_data", "market data", func(ctx context.Context, in echoInput) (string, error) {
		calls++
		return "", errors.New("upstream 500")
	})
	require.NoError(t, err)

	rt, err := NewResilientTool(context.Background(), inner, NewRetryer(fastPolicy(2), nil), time.Second)
	require.NoError(t, err)

	_, err = rt.InvokableRun(context.Background(), `{"symbol":"AAPL"}`)
	var te *models.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "get_market_data", te.Tool)
	assert.Equal(t, 2, calls)
}
