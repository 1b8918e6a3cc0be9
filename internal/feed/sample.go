package feed

import (
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// SampleBook returns a small synthetic BTC-USDT book. It keeps the API
// and strategies exercisable before the feed has delivered real data, or
// entirely offline.
func SampleBook(instID string) domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		InstID: instID,
		Bids: []domain.PriceLevel{
			{Price: 27350.5, Size: 1.5},
			{Price: 27345.0, Size: 2.0},
			{Price: 27340.0, Size: 1.8},
			{Price: 27335.0, Size: 2.2},
			{Price: 27330.0, Size: 3.0},
		},
		Asks: []domain.PriceLevel{
			{Price: 27355.0, Size: 1.0},
			{Price: 27360.0, Size: 2.0},
			{Price: 27365.0, Size: 1.5},
			{Price: 27370.0, Size: 2.5},
			{Price: 27375.0, Size: 3.0},
		},
		Timestamp: time.Now(),
	}
}
