package agent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"sync"
	"text/template"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/interfaces"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

//go:embed prompt/system.md
var systemPromptTmpl string

var systemPrompt = template.Must(template.New("system").Parse(systemPromptTmpl))

// recentMessageLimit bounds how much conversation goes into the
// system prompt; the full window stays in the snapshot.
const recentMessageLimit = 20

// promptDocument represents an attached document for template rendering
type promptDocument struct {
	Filename string
	FileType string
	Size     int64
	Summary  string
}

// promptMessage represents a restored conversation message for template rendering
type promptMessage struct {
	Role    string
	Content string
}

// systemPromptData holds all data for the session system prompt template
type systemPromptData struct {
	Documents        []promptDocument
	CurrentTopic     string
	LastAnalysisType string
	Messages         []promptMessage
}

// Session is one live agent conversation bound to a thread. The LLM
// session opens on the first ProcessMessage so that documents and
// restored memory accumulated beforehand end up in the system prompt.
// Attaching a new or changed document drops the live session; the next
// message reopens it with the new prompt. The conversation log grows
// as turns complete, so a reopened prompt carries every turn since
// restore, not just the restored snapshot.
type Session struct {
	llmClient gollem.LLMClient
	cfg       *model.AgentConfig

	mu           sync.Mutex
	live         gollem.Session
	documents    []promptDocument
	topic        string
	analysisType string
	conversation []promptMessage
}

var _ interfaces.AgentSession = &Session{}

func newSession(llmClient gollem.LLMClient, cfg *model.AgentConfig) *Session {
	return &Session{
		llmClient: llmClient,
		cfg:       cfg,
	}
}

// AttachDocument adds document context for subsequent messages.
// localPath is where the payload was staged; the prompt only carries
// metadata, so a metadata-only attach (empty path) works the same here.
// Re-attaching an unchanged document keeps the live session open.
func (s *Session) AttachDocument(doc *model.Document, localPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := promptDocument{
		Filename: doc.OriginalFilename,
		FileType: doc.FileType,
		Size:     doc.Size,
		Summary:  doc.Summary,
	}

	for i, d := range s.documents {
		if d.Filename == entry.Filename {
			if d == entry {
				return
			}
			s.documents[i] = entry
			s.live = nil
			return
		}
	}
	s.documents = append(s.documents, entry)
	s.live = nil
}

// RestoreMemory primes the session with a persisted snapshot. The
// snapshot seeds the conversation log; later turns append to it.
func (s *Session) RestoreMemory(snapshot *model.MemorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topic = snapshot.Context.CurrentTopic
	s.analysisType = snapshot.Context.LastAnalysisType

	s.conversation = s.conversation[:0]
	for _, msg := range snapshot.Messages {
		s.conversation = append(s.conversation, promptMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	s.live = nil
}

// ProcessMessage sends one user message and returns the structured
// reply. The live LLM session keeps conversation state between calls.
func (s *Session) ProcessMessage(ctx context.Context, text string) (*model.AgentReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live == nil {
		session, err := s.open(ctx)
		if err != nil {
			return nil, err
		}
		s.live = session
	}

	resp, err := s.live.Generate(ctx, []gollem.Input{gollem.Text(text)})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate agent reply",
			goerr.V("threadID", s.cfg.ThreadID),
		)
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("agent returned an empty response",
			goerr.V("threadID", s.cfg.ThreadID),
		)
	}

	reply := s.parseReply(ctx, resp.Texts[0])

	// the log feeds the system prompt when the session reopens
	s.conversation = append(s.conversation,
		promptMessage{Role: string(types.MessageRoleHuman), Content: text},
		promptMessage{Role: string(types.MessageRoleAI), Content: reply.Answer},
	)

	return reply, nil
}

// Close releases the session. Safe on a session that never opened.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = nil
	return nil
}

func (s *Session) open(ctx context.Context) (gollem.Session, error) {
	session, err := s.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(replySchema()),
		gollem.WithSessionSystemPrompt(s.buildSystemPrompt()),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session",
			goerr.V("threadID", s.cfg.ThreadID),
			goerr.V("model", s.cfg.Model),
		)
	}

	return session, nil
}

// parseReply decodes the structured JSON reply. A response that does not
// parse is degraded to a plain-text answer instead of failing the turn.
func (s *Session) parseReply(ctx context.Context, raw string) *model.AgentReply {
	var reply model.AgentReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil || reply.Answer == "" {
		logging.From(ctx).Warn("agent reply is not valid JSON, using raw text",
			"threadID", s.cfg.ThreadID,
		)
		return &model.AgentReply{
			Answer: raw,
			Type:   "general",
		}
	}

	return &reply
}

func (s *Session) buildSystemPrompt() string {
	data := systemPromptData{
		Documents:        s.documents,
		CurrentTopic:     s.topic,
		LastAnalysisType: s.analysisType,
	}

	messages := s.conversation
	if len(messages) > recentMessageLimit {
		messages = messages[len(messages)-recentMessageLimit:]
	}
	data.Messages = append(data.Messages, messages...)

	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, data); err != nil {
		// Template execution should not fail with valid data; fall back
		// to the bare role line
		return "You are a data analysis assistant for a document-grounded chat service."
	}

	return buf.String()
}

// replySchema is the JSON schema for structured agent output
func replySchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "AgentReply",
		Description: "Structured reply of one agent turn",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"answer": {
				Type:        gollem.TypeString,
				Description: "The answer to show the user",
				Required:    true,
			},
			"response_type": {
				Type:        gollem.TypeString,
				Description: "Kind of answer: general, statistical, visualization or document",
				Required:    true,
			},
			"confidence": {
				Type:        gollem.TypeNumber,
				Description: "How well the available material supports the answer, 0.0 to 1.0",
				Required:    true,
			},
			"sources": {
				Type:        gollem.TypeArray,
				Description: "Filenames the answer relied on",
				Items: &gollem.Parameter{
					Type: gollem.TypeString,
				},
			},
			"visualization": {
				Type:        gollem.TypeObject,
				Description: "Chart specification when the user asked for one",
				Properties: map[string]*gollem.Parameter{
					"chart_type": {
						Type:        gollem.TypeString,
						Description: "bar, line, pie or scatter",
					},
					"title": {
						Type: gollem.TypeString,
					},
					"x_label": {
						Type: gollem.TypeString,
					},
					"y_label": {
						Type: gollem.TypeString,
					},
				},
			},
		},
	}
}
