package config

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewAgentForTest creates an Agent config for testing purposes
func NewAgentForTest(configPath, model string, temperature float64, memoryWindow, maxSessions, idleTimeoutMin int) *Agent {
	return &Agent{
		configPath:       configPath,
		model:            model,
		temperature:      temperature,
		memoryWindow:     memoryWindow,
		maxSessions:      maxSessions,
		idleTimeoutMin:   idleTimeoutMin,
		sweepIntervalMin: 5,
		sweepBackoffMin:  1,
		cacheTTLMin:      30,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend string) *Repository {
	return &Repository{
		backend: backend,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
