package telemetry

import (
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// recordingSink si pamatuje všechna měření předaná ke zápisu.
type recordingSink struct {
	mu       sync.Mutex
	readings []Reading
}

func (s *recordingSink) Store(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
}

func (s *recordingSink) stored() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reading(nil), s.readings...)
}
