package reasoningbank

import (
	"sync"

	"github.com/fractalcore/agentmem/internal/model"
)

// experienceBuffer holds per-user in-memory Experience records awaiting
// extract_strategies, mirroring the teacher's SessionBufferManager
// keyed-map-of-slices pattern generalized from per-session turns to
// per-user experiences.
type experienceBuffer struct {
	mu      sync.Mutex
	byUser  map[string][]model.Experience
	maxSize int
}

func newExperienceBuffer(maxSize int) *experienceBuffer {
	return &experienceBuffer{byUser: make(map[string][]model.Experience), maxSize: maxSize}
}

// add appends exp to userID's buffer and reports whether the buffer has
// now reached its configured size.
func (b *experienceBuffer) add(userID string, exp model.Experience) (ready bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byUser[userID] = append(b.byUser[userID], exp)
	return b.maxSize > 0 && len(b.byUser[userID]) >= b.maxSize
}

// drain returns and clears userID's buffered experiences.
func (b *experienceBuffer) drain(userID string) []model.Experience {
	b.mu.Lock()
	defer b.mu.Unlock()
	buffered := b.byUser[userID]
	delete(b.byUser, userID)
	return buffered
}

// snapshot returns a copy of userID's current buffer without clearing it.
func (b *experienceBuffer) snapshot(userID string) []model.Experience {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Experience, len(b.byUser[userID]))
	copy(out, b.byUser[userID])
	return out
}
