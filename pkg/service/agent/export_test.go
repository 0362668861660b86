package agent

// RenderSystemPrompt exposes the prompt rendering for tests
func (s *Session) RenderSystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildSystemPrompt()
}
