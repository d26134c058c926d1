package signal

// OrderGuidance is placement advice for acting on a recommendation built from
// delayed quotes. It is text only; nothing is ever sent to a broker.
func OrderGuidance(a Action) []string {
	if !a.IsBuy() {
		return []string{"no action"}
	}
	return []string{
		"after the close, queue a limit order for the next session's pre-open",
		"near the closing auction, a day limit order about 1% above the last price fills without chasing a spike",
		"never use market orders: quotes may lag by up to 20 minutes and slippage can be severe",
	}
}
