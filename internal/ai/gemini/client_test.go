package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func noSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = original })
}

func TestGeneratorRetryPolicy(t *testing.T) {
	unavailable := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	longQuota := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}

	tests := []struct {
		name      string
		retries   int
		responses []fakeChatResponse
		wantCalls int
		wantText  string
		wantErr   bool
	}{
		{
			name:      "recovers after a server error",
			retries:   2,
			responses: []fakeChatResponse{{err: unavailable}, {resp: textResponse(`{"result": []}`)}},
			wantCalls: 2,
			wantText:  `{"result": []}`,
		},
		{
			name:      "gives up when attempts are spent",
			retries:   2,
			responses: []fakeChatResponse{{err: unavailable}, {err: unavailable}},
			wantCalls: 2,
			wantErr:   true,
		},
		{
			name:      "long quota pause is not retried",
			retries:   3,
			responses: []fakeChatResponse{{err: longQuota}},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noSleep(t)

			chats := newFakeChatCreator()
			for _, r := range tt.responses {
				chats.enqueue(defaultModel, r.resp, r.err)
			}
			g := &Generator{chats: chats, model: defaultModel, maxRetries: tt.retries, logger: zap.NewNop()}

			out, err := g.GenerateContent(context.Background(), "score resumes", "job and batch")
			if tt.wantErr != (err != nil) {
				t.Fatalf("unexpected error state: %v", err)
			}
			if out != tt.wantText {
				t.Fatalf("unexpected output: %q", out)
			}
			if len(chats.calls) != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, len(chats.calls))
			}
			for _, call := range chats.calls {
				if got := call.config.SystemInstruction.Parts[0].Text; got != "score resumes" {
					t.Fatalf("unexpected system instruction: %q", got)
				}
				if len(call.chat.messages) != 1 || call.chat.messages[0] != "job and batch" {
					t.Fatalf("unexpected chat messages: %+v", call.chat.messages)
				}
			}
		})
	}
}

func TestGeneratorRejectsBlankPrompt(t *testing.T) {
	g := &Generator{chats: newFakeChatCreator(), model: defaultModel, maxRetries: 1, logger: zap.NewNop()}
	if _, err := g.GenerateContent(context.Background(), "sys", "  "); err == nil {
		t.Fatal("expected error for blank prompt")
	}
}

func TestGeneratorSetsJSONResponseType(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue(defaultModel, &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: " {\"result\": []} "}, {Text: ""}}},
		}},
	}, nil)

	g := &Generator{chats: chats, model: defaultModel, maxRetries: 1, logger: zap.NewNop()}

	output, err := g.GenerateContent(context.Background(), "", "msg")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != `{"result": []}` {
		t.Fatalf("unexpected output: %q", output)
	}
	call := chats.calls[0]
	if call.config.ResponseMIMEType != "application/json" {
		t.Fatalf("unexpected mime type: %q", call.config.ResponseMIMEType)
	}
	if call.config.SystemInstruction != nil {
		t.Fatalf("expected no system instruction for blank input")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		attempt int
		delay   time.Duration
		retry   bool
	}{
		{name: "server error backs off", err: genai.APIError{Code: http.StatusServiceUnavailable}, attempt: 2, delay: 4 * time.Second, retry: true},
		{name: "short quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 7s"}, attempt: 1, delay: 7 * time.Second, retry: true},
		{name: "long quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "retry after 45 s"}, attempt: 1, retry: false},
		{name: "bad request", err: genai.APIError{Code: http.StatusBadRequest}, attempt: 1, retry: false},
		{name: "plain error", err: errors.New("boom"), attempt: 1, retry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, retry := retryDelay(tt.err, tt.attempt)
			if retry != tt.retry {
				t.Fatalf("expected retry=%v, got %v", tt.retry, retry)
			}
			if retry && delay != tt.delay {
				t.Fatalf("expected delay %v, got %v", tt.delay, delay)
			}
		})
	}
}

type fakeEmbedder struct {
	model  string
	input  string
	values []float32
	err    error
}

func (f *fakeEmbedder) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.input = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: f.values}}}, nil
}

func TestGeneratorEmbed(t *testing.T) {
	fake := &fakeEmbedder{values: []float32{0.5, -1, 2}}
	g := &Generator{embeddings: fake, embedModel: "text-embedding-004", logger: zap.NewNop()}

	out, err := g.Embed(context.Background(), "  python aws  ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 3 || out[0] != 0.5 || out[1] != -1 || out[2] != 2 {
		t.Fatalf("unexpected embedding: %v", out)
	}
	if fake.model != "text-embedding-004" || fake.input != "python aws" {
		t.Fatalf("unexpected request: model=%q input=%q", fake.model, fake.input)
	}

	if _, err := g.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank input")
	}

	empty := &Generator{embeddings: &fakeEmbedder{}, embedModel: "m"}
	if _, err := empty.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
