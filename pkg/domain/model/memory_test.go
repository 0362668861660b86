package model_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func newMsg(role types.MessageRole, content string) model.MemoryMessage {
	return model.MemoryMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func TestNewMemorySnapshot(t *testing.T) {
	s := model.NewMemorySnapshot("thread-1", "user-1")

	gt.S(t, s.ID.String()).NotEqual("")
	gt.V(t, s.ThreadID).Equal(types.ThreadID("thread-1"))
	gt.V(t, s.UserID).Equal(types.UserID("user-1"))
	gt.Number(t, s.Version).Equal(0)
	gt.A(t, s.Messages).Length(0)
	gt.B(t, s.CreatedAt.IsZero()).False()
}

func TestMemorySnapshot_Append(t *testing.T) {
	t.Run("appends in order", func(t *testing.T) {
		s := model.NewMemorySnapshot("thread-1", "user-1")
		s.Append(newMsg(types.MessageRoleHuman, "first"), 50)
		s.Append(newMsg(types.MessageRoleAI, "second"), 50)

		gt.A(t, s.Messages).Length(2)
		gt.S(t, s.Messages[0].Content).Equal("first")
		gt.S(t, s.Messages[1].Content).Equal("second")
	})

	t.Run("drops oldest beyond the window", func(t *testing.T) {
		s := model.NewMemorySnapshot("thread-1", "user-1")
		for i := 0; i < 51; i++ {
			s.Append(newMsg(types.MessageRoleHuman, fmt.Sprintf("msg-%d", i)), 50)
		}

		gt.A(t, s.Messages).Length(50)
		// msg-0 is gone, msg-1..msg-50 remain oldest-first
		gt.S(t, s.Messages[0].Content).Equal("msg-1")
		gt.S(t, s.Messages[49].Content).Equal("msg-50")
	})

	t.Run("zero window means unbounded", func(t *testing.T) {
		s := model.NewMemorySnapshot("thread-1", "user-1")
		for i := 0; i < 60; i++ {
			s.Append(newMsg(types.MessageRoleHuman, "m"), 0)
		}
		gt.A(t, s.Messages).Length(60)
	})
}

func TestMemorySnapshot_Clone(t *testing.T) {
	s := model.NewMemorySnapshot("thread-1", "user-1")
	s.Append(model.MemoryMessage{
		Role:     types.MessageRoleAI,
		Content:  "hello",
		Metadata: map[string]any{"confidence": 0.9},
	}, 50)
	s.Context.CurrentTopic = "sales"
	s.Context.Preferences["lang"] = "en"
	s.Context.SelectedDocuments = []types.DocumentID{"doc-1"}
	s.Version = 3

	clone := s.Clone()

	gt.V(t, clone.ID).Equal(s.ID)
	gt.Number(t, clone.Version).Equal(3)
	gt.A(t, clone.Messages).Length(1)
	gt.S(t, clone.Context.CurrentTopic).Equal("sales")

	// Mutating the clone must not leak into the original
	clone.Messages[0].Metadata["confidence"] = 0.1
	clone.Context.Preferences["lang"] = "ja"
	clone.Context.SelectedDocuments[0] = "doc-2"
	clone.Append(newMsg(types.MessageRoleHuman, "extra"), 50)

	gt.V(t, s.Messages[0].Metadata["confidence"]).Equal(0.9)
	gt.V(t, s.Context.Preferences["lang"]).Equal("en")
	gt.V(t, s.Context.SelectedDocuments[0]).Equal(types.DocumentID("doc-1"))
	gt.A(t, s.Messages).Length(1)
}
