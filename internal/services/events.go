package services

import "github.com/docuchat/backend/internal/domain"

// EventSink receives the ordered events of one streamed answer:
// zero or more Content deltas, then exactly one terminal Citations or
// Error. Implemented over SSE by the HTTP layer and by recorders in
// tests.
type EventSink interface {
	Content(delta string) error
	Citations(citations []domain.Citation) error
	Error(message string) error
}
