package writes

import "sync"

// Sequencer runs callers in the order they took tickets. A repository
// takes a ticket while it still holds its own lock, releases the lock,
// and then runs the remote write in ticket order.
// The zero value is ready to use.
type Sequencer struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64
	turn uint64
}

// Ticket reserves the next turn.
// PRE: every ticket is passed to Run exactly once
func (s *Sequencer) Ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next++
	return t
}

// Run waits for ticket's turn, runs fn and hands the turn on.
func (s *Sequencer) Run(ticket uint64, fn func()) {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	for s.turn != ticket {
		s.cond.Wait()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.turn++
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	fn()
}
