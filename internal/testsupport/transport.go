package testsupport

import (
	"context"
	"path/filepath"
	"sync"
)

// Response is one scripted transport reply.
type Response struct {
	Code int
	Err  error
}

// Call records one Send invocation.
type Call struct {
	LocalPath string
	RemoteKey string
}

// StubTransport replies from a script: per-file overrides first, then queued
// responses in order, then the default.
type StubTransport struct {
	mu      sync.Mutex
	def     Response
	queued  []Response
	perFile map[string]Response
	calls   []Call
}

// NewStubTransport returns a stub that answers def once its script runs out.
func NewStubTransport(def Response) *StubTransport {
	return &StubTransport{def: def, perFile: map[string]Response{}}
}

// Queue appends responses consumed one per Send.
func (s *StubTransport) Queue(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, responses...)
}

// RespondFor always answers resp for files whose base name is name.
func (s *StubTransport) RespondFor(name string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perFile[name] = resp
}

func (s *StubTransport) Send(_ context.Context, localPath, remoteKey string) (int, error) {
	s.mu.Lock()
	call := Call{LocalPath: localPath, RemoteKey: remoteKey}
	s.calls = append(s.calls, call)
	resp, ok := s.perFile[filepath.Base(localPath)]
	if !ok {
		resp = s.def
		if len(s.queued) > 0 {
			resp = s.queued[0]
			s.queued = s.queued[1:]
		}
	}
	s.mu.Unlock()
	return resp.Code, resp.Err
}

// Calls returns every Send invocation in order.
func (s *StubTransport) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
