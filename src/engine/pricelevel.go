package engine

// handle indexes a slot in the book's order arena.
type handle int32

type slot struct {
	order Order
	live  bool
}

// arena stores resting orders in a flat slice and recycles freed slots, so
// price levels only carry small integer handles instead of pointers.
type arena struct {
	slots []slot
	free  []handle
}

func (a *arena) alloc(o Order) handle {
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h] = slot{order: o, live: true}
		return h
	}
	a.slots = append(a.slots, slot{order: o, live: true})
	return handle(len(a.slots) - 1)
}

// get returns a pointer valid until the next alloc.
func (a *arena) get(h handle) *Order {
	return &a.slots[h].order
}

func (a *arena) release(h handle) {
	a.slots[h] = slot{}
	a.free = append(a.free, h)
}

// priceLevel holds the resting orders at one price in strict arrival order.
type priceLevel struct {
	price  int64
	orders []handle // fifo ordering for time priority
	total  int64    // aggregate remaining quantity
}

func (l *priceLevel) empty() bool {
	return len(l.orders) == 0
}

func (l *priceLevel) push(h handle, qty int64) {
	l.orders = append(l.orders, h)
	l.total += qty
}

func (l *priceLevel) front() handle {
	return l.orders[0]
}

func (l *priceLevel) popFront() {
	l.orders[0] = 0
	l.orders = l.orders[1:]
	// edge case: reclaim the backing array once the queue drains
	if len(l.orders) == 0 {
		l.orders = nil
	}
}

// remove splices h out while keeping the relative order of the others.
func (l *priceLevel) remove(h handle) bool {
	for i, o := range l.orders {
		if o == h {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return true
		}
	}
	return false
}
