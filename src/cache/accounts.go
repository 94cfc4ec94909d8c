package cache

import (
	"papertrader/src/connectors"
)

// AccountSnapshots keeps the latest broker account snapshot per user.
type AccountSnapshots struct {
	c *Cache
}

func NewAccountSnapshots(c *Cache) *AccountSnapshots {
	return &AccountSnapshots{c: c}
}

func (a *AccountSnapshots) Get(userID string) (*connectors.Account, bool) {
	v, ok := a.c.Get(AccountKey(userID))
	if !ok {
		return nil, false
	}
	acc, ok := v.(*connectors.Account)
	return acc, ok
}

func (a *AccountSnapshots) Put(userID string, acc *connectors.Account) {
	a.c.Set(AccountKey(userID), acc)
}

func (a *AccountSnapshots) Wait() { a.c.Wait() }
