package interfaces

// IDGenerator produces unique identifiers for customers, accounts, and
// transactions. The prefix keys the identifier to its record kind
// ("CH" deposit account, "TR" transfer, "QF" quarterly fee, ...).
type IDGenerator interface {
	NewID(prefix string) string
}
