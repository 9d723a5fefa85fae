package pricing

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
)

const orderBookDepth = 10

var (
	orderBookStep      = decimal.RequireFromString("0.001")
	orderBookMinAmount = decimal.RequireFromString("0.1")
	orderBookAmountRng = decimal.RequireFromString("0.5")
)

// Level is one price level of an order book.
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderBook is a synthetic depth view around the last price. It is display
// data only; orders are never matched against it.
type OrderBook struct {
	Symbol    ledger.Symbol `json:"symbol"`
	Bids      []Level       `json:"bids"`
	Asks      []Level       `json:"asks"`
	Timestamp time.Time     `json:"timestamp"`
}

// BuildOrderBook generates bids below and asks above price in 0.1% steps.
// Bids are sorted highest first, asks lowest first.
func BuildOrderBook(sym ledger.Symbol, price decimal.Decimal, rng *rand.Rand, at time.Time) OrderBook {
	book := OrderBook{
		Symbol:    sym,
		Bids:      make([]Level, 0, orderBookDepth),
		Asks:      make([]Level, 0, orderBookDepth),
		Timestamp: at,
	}
	for i := 1; i <= orderBookDepth; i++ {
		offset := orderBookStep.Mul(decimal.NewFromInt(int64(i)))
		book.Bids = append(book.Bids, Level{
			Price:  price.Mul(decimal.NewFromInt(1).Sub(offset)).Round(2),
			Amount: randomAmount(rng),
		})
		book.Asks = append(book.Asks, Level{
			Price:  price.Mul(decimal.NewFromInt(1).Add(offset)).Round(2),
			Amount: randomAmount(rng),
		})
	}
	sort.SliceStable(book.Bids, func(i, j int) bool { return book.Bids[i].Price.GreaterThan(book.Bids[j].Price) })
	sort.SliceStable(book.Asks, func(i, j int) bool { return book.Asks[i].Price.LessThan(book.Asks[j].Price) })
	return book
}

func randomAmount(rng *rand.Rand) decimal.Decimal {
	return decimal.NewFromFloat(rng.Float64()).Mul(orderBookAmountRng).Add(orderBookMinAmount)
}

// OrderBooks stores the latest book per symbol.
type OrderBooks struct {
	mu    sync.RWMutex
	books map[ledger.Symbol]OrderBook
}

// NewOrderBooks creates an empty book store.
func NewOrderBooks() *OrderBooks {
	return &OrderBooks{books: make(map[ledger.Symbol]OrderBook)}
}

// Put replaces the book of its symbol.
func (o *OrderBooks) Put(book OrderBook) {
	o.mu.Lock()
	o.books[book.Symbol] = book
	o.mu.Unlock()
}

// Get returns the book of sym, if any.
func (o *OrderBooks) Get(sym ledger.Symbol) (OrderBook, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	book, ok := o.books[sym]
	return book, ok
}
