// Package fake provides scripted Completion and Embedding services for tests.
package fake

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Responder produces the reply for one completion call.
type Responder func(in []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error)

type callLog struct {
	mu    sync.Mutex
	calls [][]*schema.Message
}

// ChatModel is a model.ToolCallingChatModel driven by a Responder.
type ChatModel struct {
	respond Responder
	tools   []*schema.ToolInfo
	log     *callLog
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)

func NewChatModel(respond Responder) *ChatModel {
	return &ChatModel{respond: respond, log: &callLog{}}
}

// Text returns a model that always answers with text.
func Text(text string) *ChatModel {
	return NewChatModel(func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	})
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.log.mu.Lock()
	m.log.calls = append(m.log.calls, append([]*schema.Message(nil), input...))
	m.log.mu.Unlock()
	return m.respond(input, m.tools)
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &ChatModel{respond: m.respond, tools: tools, log: m.log}, nil
}

// Calls returns every input seen so far, across bound copies.
func (m *ChatModel) Calls() [][]*schema.Message {
	m.log.mu.Lock()
	defer m.log.mu.Unlock()
	return append([][]*schema.Message(nil), m.log.calls...)
}

// Prompt joins the contents of a call's messages.
func Prompt(in []*schema.Message) string {
	var b strings.Builder
	for _, msg := range in {
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

const dims = 64

// Embedder hashes words into a fixed-size normalized vector so similar texts land close together.
type Embedder struct {
	mu    sync.Mutex
	Err   error
	calls int
}

var _ embedding.Embedder = (*Embedder)(nil)

func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	e.calls++
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Vector is the embedding Embedder returns for text.
func Vector(text string) []float64 {
	v := make([]float64, dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%dims]++
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}
