package domain

// CanView reports whether actor may read the order. Administrators see every
// order, everyone else only their own.
func CanView(actor Actor, order *Order) bool {
	if order == nil {
		return false
	}
	return actor.IsAdmin || actor.UserID == order.UserID
}

// CanMutate reports whether actor may pay or cancel the order.
func CanMutate(actor Actor, order *Order) bool {
	return CanView(actor, order)
}
