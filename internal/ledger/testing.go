package ledger

// SeedBalance is a test helper that overwrites the balance of an account when using the in-memory ledger.
// Symbols missing from b are set to zero.
func SeedBalance(l Ledger, address string, b Balance) {
	if mem, ok := l.(*InMemory); ok {
		mem.balances.restore(address, b)
	}
}
