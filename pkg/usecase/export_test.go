package usecase

import "time"

const MaxSaveAttempts = maxSaveAttempts

// SetCacheNow overrides the cache clock for TTL tests
func (uc *MemoryUseCase) SetCacheNow(now func() time.Time) {
	uc.cache.now = now
}

// SetNow overrides the pool clock for access-time tests
func (uc *SessionUseCase) SetNow(now func() time.Time) {
	uc.now = now
}
