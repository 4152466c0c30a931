package domain

import "time"

// PurchaseEvent is published once per committed purchase and stored by the history sink.
type PurchaseEvent struct {
	PurchaseID    string    `json:"purchase_id"`
	FanAddress    string    `json:"fan_address"`
	ArtistAddress string    `json:"artist_address"`
	SongID        string    `json:"song_id"`
	Title         string    `json:"title"`
	Tier          int       `json:"tier"`
	Genre         string    `json:"genre"`
	Cost          int64     `json:"cost"`
	BaseUnits     string    `json:"base_units"`
	TxHash        string    `json:"tx_hash"`
	BalanceAfter  int64     `json:"balance_after"`
	SpentAfter    int64     `json:"spent_after"`
	Timestamp     time.Time `json:"timestamp"`
}
