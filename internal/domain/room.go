package domain

type RoomID string

func (id RoomID) String() string { return string(id) }
