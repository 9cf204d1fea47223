package llm

import (
	"context"
	"io"
	"sync"

	"AgentCore/pkg/engine/api"
)

// ScriptedTurn is one canned model response: a sequence of chunks the
// stream yields, or an error returned before any chunk.
type ScriptedTurn struct {
	Chunks []Chunk
	Err    error

	// Response backs GenerateContent for the same turn.
	Response *Response
}

// ScriptedClient replays a fixed script of turns. Each call to
// GenerateContentStream or GenerateContent consumes the next turn;
// when the script runs out it repeats the last turn.
type ScriptedClient struct {
	mu     sync.Mutex
	turns  []ScriptedTurn
	idx    int
	tokens func(contents []api.Content) (int, error)

	// Requests records every request received, for assertions.
	Requests []Request
}

func NewScriptedClient(turns ...ScriptedTurn) *ScriptedClient {
	return &ScriptedClient{turns: turns}
}

// TextTurn builds a turn that streams a single text chunk.
func TextTurn(text string) ScriptedTurn {
	return ScriptedTurn{
		Chunks:   []Chunk{{Text: text}, {FinishReason: "STOP"}},
		Response: &Response{Text: text, FinishReason: "STOP"},
	}
}

// CallTurn builds a turn that streams a single function call.
func CallTurn(id, name string, args api.Args) ScriptedTurn {
	fc := api.FunctionCall{ID: id, Name: name, Args: args}
	return ScriptedTurn{
		Chunks:   []Chunk{{FunctionCall: &fc}, {FinishReason: "STOP"}},
		Response: &Response{FunctionCalls: []api.FunctionCall{fc}, FinishReason: "STOP"},
	}
}

// ErrTurn builds a turn that fails before emitting anything.
func ErrTurn(err error) ScriptedTurn {
	return ScriptedTurn{Err: err}
}

// SetTokenCounter overrides CountTokens; by default the mock counts
// four characters per token over the serialized text parts.
func (m *ScriptedClient) SetTokenCounter(fn func(contents []api.Content) (int, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = fn
}

func (m *ScriptedClient) nextTurn(req Request) ScriptedTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.turns) == 0 {
		return TextTurn("")
	}
	t := m.turns[m.idx]
	if m.idx < len(m.turns)-1 {
		m.idx++
	}
	return t
}

func (m *ScriptedClient) GenerateContentStream(ctx context.Context, req Request) (Stream, error) {
	t := m.nextTurn(req)
	if t.Err != nil {
		return nil, t.Err
	}
	return &scriptedStream{chunks: t.Chunks}, nil
}

func (m *ScriptedClient) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	t := m.nextTurn(req)
	if t.Err != nil {
		return nil, t.Err
	}
	if t.Response != nil {
		return t.Response, nil
	}
	resp := &Response{}
	for _, ch := range t.Chunks {
		if ch.Text != "" && !ch.Thought {
			resp.Text += ch.Text
		}
		if ch.FunctionCall != nil {
			resp.FunctionCalls = append(resp.FunctionCalls, *ch.FunctionCall)
		}
		if ch.FinishReason != "" {
			resp.FinishReason = ch.FinishReason
		}
	}
	return resp, nil
}

func (m *ScriptedClient) CountTokens(ctx context.Context, model string, contents []api.Content) (int, error) {
	m.mu.Lock()
	fn := m.tokens
	m.mu.Unlock()
	if fn != nil {
		return fn(contents)
	}
	chars := 0
	for _, c := range contents {
		for _, p := range c.Parts {
			chars += len(p.Text)
			if p.FunctionCall != nil || p.FunctionResponse != nil {
				chars += 64
			}
		}
	}
	return chars / 4, nil
}

type scriptedStream struct {
	chunks []Chunk
	pos    int
}

func (s *scriptedStream) Recv(ctx context.Context) (Chunk, error) {
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	default:
	}
	if s.pos >= len(s.chunks) {
		return Chunk{}, io.EOF
	}
	ch := s.chunks[s.pos]
	s.pos++
	return ch, nil
}

func (s *scriptedStream) Close() error { return nil }
