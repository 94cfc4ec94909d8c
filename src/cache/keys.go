package cache

// AccountKey is the cache key of a user's account snapshot.
func AccountKey(userID string) string {
	return "account:" + userID
}
