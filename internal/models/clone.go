package models

// Clone returns an independent copy of the account. Transaction records
// are immutable once finalized, so the history slice is copied shallowly.
func (a *DepositAccount) Clone() *DepositAccount {
	cp := *a
	cp.Transactions = append([]Transaction(nil), a.Transactions...)
	return &cp
}

// Clone returns an independent copy of the credit account.
func (c *CreditAccount) Clone() *CreditAccount {
	cp := *c
	cp.Schedule = append([]ScheduleEntry(nil), c.Schedule...)
	cp.Transactions = append([]Transaction(nil), c.Transactions...)
	if c.StartDate != nil {
		d := *c.StartDate
		cp.StartDate = &d
	}
	if c.EndDate != nil {
		d := *c.EndDate
		cp.EndDate = &d
	}
	if c.WriteOffDate != nil {
		d := *c.WriteOffDate
		cp.WriteOffDate = &d
	}
	return &cp
}
