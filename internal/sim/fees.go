package sim

import (
	"log/slog"
	"math"
	"sort"

	"github.com/okquant/costsim/internal/domain"
)

// Default fee rates in percent, applied when no profile is supplied.
const (
	DefaultMakerPct = 0.06
	DefaultTakerPct = 0.08
)

// Logistic maker/taker classifier weights. P(taker) rises with order
// size and with the quoted spread.
const (
	takerProbSizeWeight   = 0.3
	takerProbSpreadWeight = 8.0
	takerProbBias         = -2.5
)

// volumeTier maps a 30-day traded volume threshold to discounted rates.
type volumeTier struct {
	MinVolume float64
	MakerPct  float64
	TakerPct  float64
}

// defaultVolumeTiers is ordered ascending by threshold; the highest
// matching tier wins.
var defaultVolumeTiers = []volumeTier{
	{MinVolume: 10_000, MakerPct: 0.05, TakerPct: 0.07},
	{MinVolume: 100_000, MakerPct: 0.04, TakerPct: 0.06},
	{MinVolume: 1_000_000, MakerPct: 0.03, TakerPct: 0.05},
	{MinVolume: 10_000_000, MakerPct: 0.02, TakerPct: 0.04},
	{MinVolume: 100_000_000, MakerPct: 0.01, TakerPct: 0.03},
}

// defaultVIPProfiles maps VIP tier names to fee profiles. Negative maker
// rates are rebates.
var defaultVIPProfiles = map[string]domain.FeeProfile{
	"retail":        {MakerPct: DefaultMakerPct, TakerPct: DefaultTakerPct},
	"institutional": {MakerPct: 0.01, TakerPct: 0.03},
	"market_maker":  {MakerPct: -0.01, TakerPct: 0.02},
}

// FeeModel computes fee amounts and estimates applicable rates. Rate
// estimation supports a rule-based path (order type decides maker vs
// taker, tiers decide the rate) and a probabilistic path that blends
// maker and taker rates by a logistic P(taker).
type FeeModel struct {
	tiers  []volumeTier
	vip    map[string]domain.FeeProfile
	logger *slog.Logger
}

// NewFeeModel creates a FeeModel with the default tier and VIP tables.
func NewFeeModel(logger *slog.Logger) *FeeModel {
	return &FeeModel{
		tiers:  defaultVolumeTiers,
		vip:    defaultVIPProfiles,
		logger: logger.With(slog.String("component", "fee_model")),
	}
}

// CalculateFee converts a notional amount and a percent rate into a fee
// amount. Non-positive amounts and negative rates yield 0.
func (m *FeeModel) CalculateFee(amountQuote, ratePct float64) float64 {
	if amountQuote <= 0 || ratePct < 0 {
		return 0
	}
	return amountQuote * ratePct / 100
}

// Rate picks the applicable percent rate for an execution class from a
// profile, resolving tier fields first and substituting defaults when
// the profile is nil. Partial fills are charged as taker.
func (m *FeeModel) Rate(profile *domain.FeeProfile, class domain.ExecutionType) float64 {
	maker, taker := DefaultMakerPct, DefaultTakerPct
	if resolved := m.resolveProfile(profile); resolved != nil {
		maker, taker = resolved.MakerPct, resolved.TakerPct
	}
	switch class {
	case domain.ExecutionTaker, domain.ExecutionPartial:
		return taker
	case domain.ExecutionMaker:
		return maker
	default:
		return 0
	}
}

// VIPProfile looks up the fee profile for a named VIP tier. Unknown
// tiers fall back to retail.
func (m *FeeModel) VIPProfile(tier string) domain.FeeProfile {
	if p, ok := m.vip[tier]; ok {
		return p
	}
	return m.vip["retail"]
}

// TierProfile returns the rate pair earned by a 30-day traded volume.
// Volumes below the lowest tier pay the defaults.
func (m *FeeModel) TierProfile(volume30d float64) domain.FeeProfile {
	p := domain.FeeProfile{MakerPct: DefaultMakerPct, TakerPct: DefaultTakerPct}
	idx := sort.Search(len(m.tiers), func(i int) bool {
		return m.tiers[i].MinVolume > volume30d
	})
	if idx > 0 {
		t := m.tiers[idx-1]
		p.MakerPct, p.TakerPct = t.MakerPct, t.TakerPct
	}
	return p
}

// EstimateRate is the rule-based rate path: market orders are taker,
// limit orders are assumed maker without re-checking marketability (the
// execution engine performs its own marketability check; this estimate
// deliberately does not). Tier fields on the profile resolve first, VIP
// over volume over the explicit pair. With no profile the default rates
// apply, discounted by the order's own size.
func (m *FeeModel) EstimateRate(sizeQuote float64, orderType domain.OrderType, profile *domain.FeeProfile) float64 {
	taker := orderType == domain.OrderTypeMarket
	if resolved := m.resolveProfile(profile); resolved != nil {
		if taker {
			return resolved.TakerPct
		}
		return resolved.MakerPct
	}

	rate := DefaultMakerPct
	if taker {
		rate = DefaultTakerPct
	}
	return rate * sizeDiscount(sizeQuote)
}

// resolveProfile applies the tier precedence to a caller profile: a
// named VIP tier wins, then the 30-day volume tier, then the profile's
// own explicit rates. A nil profile stays nil so callers fall back to
// the defaults.
func (m *FeeModel) resolveProfile(profile *domain.FeeProfile) *domain.FeeProfile {
	if profile == nil {
		return nil
	}
	switch {
	case profile.VIPTier != "":
		p := m.VIPProfile(profile.VIPTier)
		return &p
	case profile.Volume30d > 0:
		p := m.TierProfile(profile.Volume30d)
		return &p
	default:
		return profile
	}
}

// sizeDiscount applies the large-order multiplier schedule.
func sizeDiscount(sizeQuote float64) float64 {
	switch {
	case sizeQuote > 1_000_000:
		return 0.7
	case sizeQuote > 100_000:
		return 0.8
	case sizeQuote > 10_000:
		return 0.9
	default:
		return 1.0
	}
}

// TakerProbability estimates P(taker) for an order of the given quote
// size against a book, using a logistic over log-size and the fractional
// spread. A degenerate book yields the neutral 0.5.
func (m *FeeModel) TakerProbability(sizeQuote float64, book domain.OrderBookSnapshot) float64 {
	bid, ask := book.BestBid(), book.BestAsk()
	if bid <= 0 || ask <= 0 || ask <= bid {
		return 0.5
	}
	mid := (bid + ask) / 2
	spread := (ask - bid) / mid

	x := takerProbSizeWeight*math.Log(math.Max(1, sizeQuote)) +
		takerProbSpreadWeight*spread +
		takerProbBias
	return sigmoid(x)
}

// BlendedRate is the probabilistic rate path: maker and taker rates
// weighted by the logistic P(taker).
func (m *FeeModel) BlendedRate(sizeQuote float64, book domain.OrderBookSnapshot, profile *domain.FeeProfile) float64 {
	maker, taker := DefaultMakerPct, DefaultTakerPct
	if resolved := m.resolveProfile(profile); resolved != nil {
		maker, taker = resolved.MakerPct, resolved.TakerPct
	}
	p := m.TakerProbability(sizeQuote, book)
	return p*taker + (1-p)*maker
}

// sigmoid saturates to 0 or 1 on overflow instead of returning NaN.
func sigmoid(x float64) float64 {
	switch {
	case x > 700:
		return 1
	case x < -700:
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
