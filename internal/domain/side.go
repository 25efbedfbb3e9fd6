package domain

// BookSide tags a direction on the book or a resting/desired order.
type BookSide string

const (
	Bid BookSide = "bid"
	Ask BookSide = "ask"
)

// FillSide tags a direction on a trade or an execution.
type FillSide string

const (
	Buy  FillSide = "buy"
	Sell FillSide = "sell"
)

// BookSide returns the book-side equivalent of a fill direction: buying
// happens by resting (or crossing) a bid, selling by resting an ask.
func (f FillSide) BookSide() BookSide {
	if f == Buy {
		return Bid
	}
	return Ask
}
