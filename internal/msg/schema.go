package msg

// FillMsg is one execution against an agent order, published on venue.fills
type FillMsg struct {
	EventID      string  `json:"event_id"`
	Episode      string  `json:"episode"`
	OrderID      string  `json:"order_id"`
	ExecID       string  `json:"exec_id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"` // "BUY" or "SELL"
	Qty          int64   `json:"qty"`
	Price        float64 `json:"price"`
	TsUnixMillis int64   `json:"ts_unix_millis"`
}

// OrderEventMsg is an order lifecycle change, published on venue.order-events
type OrderEventMsg struct {
	EventID      string `json:"event_id"`
	Episode      string `json:"episode"`
	Kind         string `json:"kind"`
	OrderID      string `json:"order_id"`
	OrigOrderID  string `json:"orig_order_id,omitempty"`
	ExecType     string `json:"exec_type,omitempty"`
	Status       string `json:"status"` // order status text, e.g. "NEW", "CANCELED"
	Symbol       string `json:"symbol,omitempty"`
	Reason       string `json:"reason,omitempty"`
	TsUnixMillis int64  `json:"ts_unix_millis"`
}
