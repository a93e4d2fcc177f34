package ledger

// Snapshot is a serializable view of the ledger. Only open positions are listed.
type Snapshot struct {
	InitialCash     float64             `json:"initial_cash"`
	Cash            float64             `json:"cash"`
	LockedCash      float64             `json:"locked_cash"`
	AvailableCash   float64             `json:"available_cash"`
	NetProfit       float64             `json:"net_profit"`
	Positions       map[string]Position `json:"positions"`
	LockedPositions map[string]int64    `json:"locked_positions"`
	ActiveOrders    []Order             `json:"active_orders"`
	PendingReplaces []string            `json:"pending_replaces,omitempty"`
	TotalFills      int                 `json:"total_fills"`
}

// Snapshot copies the current state
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		InitialCash:     l.initialCash,
		Cash:            l.cash,
		LockedCash:      l.lockedCash,
		AvailableCash:   l.AvailableCash(),
		NetProfit:       l.NetProfit(),
		Positions:       make(map[string]Position),
		LockedPositions: make(map[string]int64),
		ActiveOrders:    l.ActiveOrders(),
		TotalFills:      len(l.fills),
	}
	if len(l.holds) > 0 {
		s.PendingReplaces = l.PendingReplacements()
	}
	for symbol, pos := range l.positions {
		if pos.Qty > 0 {
			s.Positions[symbol] = *pos
		}
	}
	for symbol, qty := range l.lockedPositions {
		if qty > 0 {
			s.LockedPositions[symbol] = qty
		}
	}
	return s
}

// Flat reports whether no position is open
func (s Snapshot) Flat() bool {
	return len(s.Positions) == 0
}
