package agent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/agent"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
	calls      int
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	s.calls++
	if s.generateFn != nil {
		return s.generateFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{`{"answer":"hello","response_type":"general","confidence":0.8}`},
	}, nil
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.Generate(ctx, input)
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return s.Stream(ctx, input)
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	sessions     int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.sessions++
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func testConfig() *model.AgentConfig {
	cfg := &model.AgentConfig{
		ThreadID: types.ThreadID("thread-1"),
		UserID:   types.UserID("user-1"),
	}
	cfg.Normalize("")
	return cfg
}

func TestNewFactory_RequiresLLMClient(t *testing.T) {
	_, err := agent.NewFactory(nil)
	gt.Error(t, err)
}

func TestFactory_New(t *testing.T) {
	ctx := context.Background()

	factory := gt.R1(agent.NewFactory(&mockLLMClient{})).NoError(t)

	t.Run("builds a session for a valid config", func(t *testing.T) {
		sess, err := factory.New(ctx, testConfig())
		gt.NoError(t, err)
		gt.NotNil(t, sess)
	})

	t.Run("rejects a config without thread ID", func(t *testing.T) {
		cfg := testConfig()
		cfg.ThreadID = ""
		_, err := factory.New(ctx, cfg)
		gt.Error(t, err)
	})

	t.Run("rejects a nil config", func(t *testing.T) {
		_, err := factory.New(ctx, nil)
		gt.Error(t, err)
	})
}

func TestSession_ProcessMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a structured JSON reply", func(t *testing.T) {
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{
							Texts: []string{`{"answer":"42 rows","response_type":"statistical","confidence":0.95,"sources":["data.csv"]}`},
						}, nil
					},
				}, nil
			},
		}
		factory := gt.R1(agent.NewFactory(llm)).NoError(t)
		sess := gt.R1(factory.New(ctx, testConfig())).NoError(t)

		reply := gt.R1(sess.ProcessMessage(ctx, "how many rows?")).NoError(t)
		gt.Equal(t, reply.Answer, "42 rows")
		gt.Equal(t, reply.Type, "statistical")
		gt.Equal(t, reply.Confidence, 0.95)
		gt.A(t, reply.Sources).Length(1).Has("data.csv")
	})

	t.Run("falls back to plain text on malformed reply", func(t *testing.T) {
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{"just some prose, not JSON"}}, nil
					},
				}, nil
			},
		}
		factory := gt.R1(agent.NewFactory(llm)).NoError(t)
		sess := gt.R1(factory.New(ctx, testConfig())).NoError(t)

		reply := gt.R1(sess.ProcessMessage(ctx, "hello")).NoError(t)
		gt.Equal(t, reply.Answer, "just some prose, not JSON")
		gt.Equal(t, reply.Type, "general")
	})

	t.Run("empty response is an error", func(t *testing.T) {
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{}, nil
					},
				}, nil
			},
		}
		factory := gt.R1(agent.NewFactory(llm)).NoError(t)
		sess := gt.R1(factory.New(ctx, testConfig())).NoError(t)

		_, err := sess.ProcessMessage(ctx, "hello")
		gt.Error(t, err)
	})

	t.Run("LLM session failure propagates", func(t *testing.T) {
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return nil, goerr.New("quota exceeded")
			},
		}
		factory := gt.R1(agent.NewFactory(llm)).NoError(t)
		sess := gt.R1(factory.New(ctx, testConfig())).NoError(t)

		_, err := sess.ProcessMessage(ctx, "hello")
		gt.Error(t, err)
	})

	t.Run("reuses the live session across turns", func(t *testing.T) {
		llm := &mockLLMClient{}
		factory := gt.R1(agent.NewFactory(llm)).NoError(t)
		sess := gt.R1(factory.New(ctx, testConfig())).NoError(t)

		gt.R1(sess.ProcessMessage(ctx, "first")).NoError(t)
		gt.R1(sess.ProcessMessage(ctx, "second")).NoError(t)
		gt.Equal(t, llm.sessions, 1)
	})

	t.Run("attaching a document reopens the session", func(t *testing.T) {
		llm := &mockLLMClient{}
		factory := gt.R1(agent.NewFactory(llm)).NoError(t)
		sess := gt.R1(factory.New(ctx, testConfig())).NoError(t)

		gt.R1(sess.ProcessMessage(ctx, "first")).NoError(t)
		sess.AttachDocument(&model.Document{
			ID:               types.NewDocumentID(),
			OriginalFilename: "report.pdf",
			FileType:         "pdf",
		}, "")
		gt.R1(sess.ProcessMessage(ctx, "second")).NoError(t)
		gt.Equal(t, llm.sessions, 2)
	})

	t.Run("re-attaching the same document keeps the session", func(t *testing.T) {
		llm := &mockLLMClient{}
		factory := gt.R1(agent.NewFactory(llm)).NoError(t)
		sess := gt.R1(factory.New(ctx, testConfig())).NoError(t)

		doc := &model.Document{
			ID:               types.NewDocumentID(),
			OriginalFilename: "report.pdf",
			FileType:         "pdf",
		}
		sess.AttachDocument(doc, "")
		gt.R1(sess.ProcessMessage(ctx, "first")).NoError(t)
		sess.AttachDocument(doc, "")
		gt.R1(sess.ProcessMessage(ctx, "second")).NoError(t)
		gt.Equal(t, llm.sessions, 1)
	})
}

func TestSession_ReopenedPromptKeepsTurns(t *testing.T) {
	ctx := context.Background()

	llm := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{
						Texts: []string{`{"answer":"monthly totals are up","response_type":"statistical","confidence":0.9}`},
					}, nil
				},
			}, nil
		},
	}
	factory := gt.R1(agent.NewFactory(llm)).NoError(t)
	raw := gt.R1(factory.New(ctx, testConfig())).NoError(t)
	sess, ok := raw.(*agent.Session)
	gt.B(t, ok).True()

	snapshot := model.NewMemorySnapshot("thread-1", "user-1")
	snapshot.Append(model.MemoryMessage{
		Role:      types.MessageRoleHuman,
		Content:   "earlier question",
		Timestamp: time.Now(),
	}, 0)
	sess.RestoreMemory(snapshot)

	gt.R1(sess.ProcessMessage(ctx, "compare month over month")).NoError(t)

	sess.AttachDocument(&model.Document{
		ID:               types.NewDocumentID(),
		OriginalFilename: "expenses.csv",
		FileType:         "csv",
	}, "")

	gt.R1(sess.ProcessMessage(ctx, "now include expenses")).NoError(t)
	gt.Equal(t, llm.sessions, 2)

	prompt := sess.RenderSystemPrompt()
	gt.S(t, prompt).Contains("earlier question")
	gt.S(t, prompt).Contains("compare month over month")
	gt.S(t, prompt).Contains("monthly totals are up")
}

func TestSession_SystemPrompt(t *testing.T) {
	ctx := context.Background()

	factory := gt.R1(agent.NewFactory(&mockLLMClient{})).NoError(t)
	raw := gt.R1(factory.New(ctx, testConfig())).NoError(t)
	sess, ok := raw.(*agent.Session)
	gt.B(t, ok).True()

	sess.AttachDocument(&model.Document{
		ID:               types.NewDocumentID(),
		OriginalFilename: "sales.csv",
		FileType:         "csv",
		Size:             1024,
		Summary:          "quarterly sales figures",
	}, "/tmp/sales.csv")

	snapshot := model.NewMemorySnapshot("thread-1", "user-1")
	snapshot.Context.CurrentTopic = "Q3 revenue"
	snapshot.Context.LastAnalysisType = "statistical"
	snapshot.Append(model.MemoryMessage{
		Role:      types.MessageRoleHuman,
		Content:   "show me the total",
		Timestamp: time.Now(),
	}, 0)
	sess.RestoreMemory(snapshot)

	prompt := sess.RenderSystemPrompt()
	gt.S(t, prompt).Contains("sales.csv")
	gt.S(t, prompt).Contains("quarterly sales figures")
	gt.S(t, prompt).Contains("Q3 revenue")
	gt.S(t, prompt).Contains("show me the total")

	t.Run("restored conversation is bounded", func(t *testing.T) {
		long := model.NewMemorySnapshot("thread-1", "user-1")
		for i := 0; i < 50; i++ {
			long.Append(model.MemoryMessage{
				Role:    types.MessageRoleHuman,
				Content: "filler",
			}, 0)
		}
		long.Append(model.MemoryMessage{
			Role:    types.MessageRoleAI,
			Content: "the-last-answer",
		}, 0)
		sess.RestoreMemory(long)

		prompt := sess.RenderSystemPrompt()
		gt.S(t, prompt).Contains("the-last-answer")
		gt.B(t, strings.Count(prompt, "filler") <= 20).True()
	})
}
