package entity

// Snapshot is the whole persisted team state.
type Snapshot struct {
	Teams map[string]*Team `json:"teams" bson:"teams"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Teams: map[string]*Team{}}
}

// Clone returns a deep copy safe to mutate inside a transaction.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot()
	for name, t := range s.Teams {
		c.Teams[name] = t.Clone()
	}
	return c
}

// TeamOf returns the team userID belongs to. Membership is unique across the
// snapshot, so the first hit is the only one.
func (s *Snapshot) TeamOf(userID int64) (string, *Team, bool) {
	for name, t := range s.Teams {
		if t.HasMember(userID) {
			return name, t, true
		}
	}
	return "", nil, false
}
