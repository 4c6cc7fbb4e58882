package client

import "sync/atomic"

// RequestSequencer drops responses that a newer request has superseded. Call Begin before
// issuing a request and apply its response only if IsLatest still holds.
type RequestSequencer struct {
	latest atomic.Uint64
}

func (s *RequestSequencer) Begin() uint64 {
	return s.latest.Add(1)
}

func (s *RequestSequencer) IsLatest(id uint64) bool {
	return s.latest.Load() == id
}
