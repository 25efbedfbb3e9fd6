package domain

// InventoryPosition is the Maker's running view of how much base asset it
// is carrying for one market, rebuilt each round from AccountTracker's
// balances. Qty is positive for a long inventory, negative for short.
type InventoryPosition struct {
	Pair            string
	Qty             float64
	AvgEntryPrice   float64
	RealizedPnL     float64
}

// IsLong reports whether the inventory is net long.
func (p *InventoryPosition) IsLong() bool {
	return p.Qty > 0
}

// IsShort reports whether the inventory is net short.
func (p *InventoryPosition) IsShort() bool {
	return p.Qty < 0
}
