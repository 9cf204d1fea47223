package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"google.golang.org/genai"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/logger"
)

// GeminiClient implements Client on top of the Gemini API via the official
// genai SDK.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClientFromEnv builds a Gemini client from GEMINI_API_KEY.
func NewGeminiClientFromEnv(ctx context.Context) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	return NewGeminiClient(ctx, apiKey)
}

// NewGeminiClient builds a Gemini client with an explicit API key.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) GenerateContentStream(ctx context.Context, req Request) (Stream, error) {
	contents := toGenaiContents(req.Contents)
	cfg := toGenaiConfig(req)

	logger.Debug("LLM", "Starting streaming generation", map[string]any{
		"model":    req.Model,
		"contents": len(contents),
		"tools":    len(req.Tools),
	})

	seq := g.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg)
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, toGenaiContents(req.Contents), toGenaiConfig(req))
	if err != nil {
		return nil, classifyGenaiError(err)
	}
	out := &Response{}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		out.FinishReason = string(cand.FinishReason)
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if p == nil {
					continue
				}
				if p.Text != "" && !p.Thought {
					out.Text += p.Text
				}
				if p.FunctionCall != nil {
					out.FunctionCalls = append(out.FunctionCalls, api.FunctionCall{
						ID:   p.FunctionCall.ID,
						Name: p.FunctionCall.Name,
						Args: p.FunctionCall.Args,
					})
				}
			}
		}
	}
	return out, nil
}

func (g *GeminiClient) CountTokens(ctx context.Context, model string, contents []api.Content) (int, error) {
	resp, err := g.client.Models.CountTokens(ctx, model, toGenaiContents(contents), nil)
	if err != nil {
		return 0, classifyGenaiError(err)
	}
	return int(resp.TotalTokens), nil
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Conversions
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

func toGenaiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.ResponseJSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range req.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{tool}
	}
	return cfg
}

func toGenaiContents(contents []api.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		gc := &genai.Content{Role: c.Role}
		for _, p := range c.Parts {
			switch {
			case p.FunctionCall != nil:
				gc.Parts = append(gc.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}})
			case p.FunctionResponse != nil:
				gc.Parts = append(gc.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       p.FunctionResponse.ID,
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}})
			default:
				gc.Parts = append(gc.Parts, &genai.Part{Text: p.Text, Thought: p.Thought})
			}
		}
		out = append(out, gc)
	}
	return out
}

func classifyGenaiError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ae genai.APIError
	if errors.As(err, &ae) {
		return ErrorFromHTTPStatus(ae.Code, ae.Message, nil)
	}
	return err
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Stream adapter
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

type geminiStream struct {
	next  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	queue []Chunk
	done  bool
}

func (s *geminiStream) Recv(ctx context.Context) (Chunk, error) {
	for {
		select {
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		default:
		}

		if len(s.queue) > 0 {
			ch := s.queue[0]
			s.queue = s.queue[1:]
			return ch, nil
		}
		if s.done {
			return Chunk{}, io.EOF
		}

		resp, err, ok := s.next()
		if !ok {
			s.done = true
			return Chunk{}, io.EOF
		}
		if err != nil {
			s.done = true
			return Chunk{}, classifyGenaiError(err)
		}
		if len(resp.Candidates) == 0 {
			continue
		}
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				if p == nil {
					continue
				}
				switch {
				case p.FunctionCall != nil:
					s.queue = append(s.queue, Chunk{FunctionCall: &api.FunctionCall{
						ID:   p.FunctionCall.ID,
						Name: p.FunctionCall.Name,
						Args: p.FunctionCall.Args,
					}})
				case p.Text != "":
					s.queue = append(s.queue, Chunk{Text: p.Text, Thought: p.Thought})
				}
			}
		}
		if cand.FinishReason != "" {
			s.queue = append(s.queue, Chunk{FinishReason: string(cand.FinishReason)})
		}
	}
}

func (s *geminiStream) Close() error {
	if !s.done {
		s.done = true
		s.stop()
	}
	return nil
}
