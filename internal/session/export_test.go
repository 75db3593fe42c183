package session

import "sort"

// ListByUser returns every row for a user, newest login first.
func (s *MemoryStore) ListByUser(userID int64) []Session {
	s.mu.RLock()
	out := make([]Session, 0)
	for _, sess := range s.rows {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
