package domain

import "time"

// CallRecord is one ledger row. A nil CallingTo means the user is
// currently present in Room.
type CallRecord struct {
	Seq         int64      `json:"seq"`
	Room        RoomID     `json:"roomId"`
	User        UserID     `json:"userId"`
	CallingFrom time.Time  `json:"callingFrom"`
	CallingTo   *time.Time `json:"callingTo"`
}

func (r CallRecord) Open() bool { return r.CallingTo == nil }
