package entity

// DefaultMaxMembers is the capacity given to teams created without an explicit limit.
const DefaultMaxMembers = 10

// Team is keyed by its name inside a Snapshot; the name never changes.
type Team struct {
	OwnerID     int64   `json:"owner_id" bson:"owner_id"`
	Members     []int64 `json:"members" bson:"members"`
	MaxMembers  int     `json:"max_members" bson:"max_members"`
	Tag         string  `json:"tag" bson:"tag"`
	Picture     string  `json:"picture" bson:"picture"`
	Description string  `json:"description" bson:"description"`
}

func (t *Team) HasMember(userID int64) bool {
	for _, m := range t.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (t *Team) IsFull() bool {
	return len(t.Members) >= t.MaxMembers
}

// RemoveMember drops userID from the member list and reports whether it was present.
func (t *Team) RemoveMember(userID int64) bool {
	for i, m := range t.Members {
		if m == userID {
			t.Members = append(t.Members[:i], t.Members[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Team) Clone() *Team {
	c := *t
	c.Members = append([]int64(nil), t.Members...)
	return &c
}
