package session

// Store persists the full engine state. Implementations may store the
// snapshot however they like as long as Load returns what Save was last
// given; the engine serializes all calls under its own lock.
type Store interface {
	Load() (*State, error)
	Save(*State) error
}
