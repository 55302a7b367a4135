package repository

// DefaultCollections are inserted into an empty store on first start.
var DefaultCollections = []string{"school", "personal", "design", "groceries"}
