package usecase

// UseCases bundles the application services handed to the controllers
type UseCases struct {
	Memory  *MemoryUseCase
	Session *SessionUseCase
}

func New(memory *MemoryUseCase, session *SessionUseCase) *UseCases {
	return &UseCases{
		Memory:  memory,
		Session: session,
	}
}
