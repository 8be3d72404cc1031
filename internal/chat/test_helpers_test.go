package chat

import (
	"errors"
	"sync"
)

// fakePeer records every line sent to it.
type fakePeer struct {
	name    string
	failing bool

	mu    sync.Mutex
	lines []string
}

func newFakePeer(name string) *fakePeer {
	return &fakePeer{name: name}
}

func (p *fakePeer) Username() string { return p.name }

func (p *fakePeer) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return errors.New("peer gone")
	}
	p.lines = append(p.lines, line)
	return nil
}

func (p *fakePeer) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

func newTestRegistry(limit int) *Registry {
	return NewRegistry(NewHistory(limit), nil)
}

func equalLines(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
