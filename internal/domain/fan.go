package domain

import "time"

// FanAccount is the ledger entry of a single fan. Purchases are append-only and
// hold at most one record per song.
type FanAccount struct {
	Address   string           `json:"address"`
	Balance   int64            `json:"balance"`
	Spent     int64            `json:"spent"`
	Purchases []PurchaseRecord `json:"purchases"`
}

type PurchaseRecord struct {
	PurchaseID string    `json:"purchaseId"`
	SongID     string    `json:"songId"`
	Title      string    `json:"title"`
	Cost       int64     `json:"cost"`
	TxHash     string    `json:"txHash"`
	Timestamp  time.Time `json:"timestamp"`
}

// Owns reports whether the account already holds a record for songID.
func (a FanAccount) Owns(songID string) (PurchaseRecord, bool) {
	for _, p := range a.Purchases {
		if p.SongID == songID {
			return p, true
		}
	}
	return PurchaseRecord{}, false
}

// Clone returns a deep copy, so callers never share the purchase slice with the store.
func (a FanAccount) Clone() FanAccount {
	out := a
	out.Purchases = make([]PurchaseRecord, len(a.Purchases))
	copy(out.Purchases, a.Purchases)
	return out
}
