package portfolio

import (
	"fmt"
	"time"

	"github.com/northbeck/papertrade/internal/core"
)

// Portfolio is the in-memory ledger of cash, open positions and closed
// trades. Position ids are sequential so that identical operation sequences
// produce identical histories.
type Portfolio struct {
	initialBalance float64
	cash           float64
	positions      map[string]*Position
	order          []string // open position ids in insertion order
	trades         []Trade
	marks          map[string]float64 // last known price per symbol
	realized       float64            // running sum of closed trade P&L
	seq            int
}

// New creates a portfolio seeded with the given cash balance.
func New(initialBalance float64) *Portfolio {
	return &Portfolio{
		initialBalance: initialBalance,
		cash:           initialBalance,
		positions:      make(map[string]*Position),
		marks:          make(map[string]float64),
	}
}

// InitialBalance returns the immutable starting balance.
func (p *Portfolio) InitialBalance() float64 { return p.initialBalance }

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// OpenPosition validates the request, debits cash by cost plus fee and
// stores a new open position. On any failure the ledger is left untouched.
func (p *Portfolio) OpenPosition(req OpenRequest) (*Position, error) {
	if err := validateOpen(req); err != nil {
		return nil, err
	}

	cost := req.Quantity*req.Price + req.Fee
	if cost > p.cash {
		return nil, core.WrapError(core.ErrInsufficientFunds,
			fmt.Errorf("need %.2f, have %.2f", cost, p.cash))
	}

	p.seq++
	pos := &Position{
		ID:         fmt.Sprintf("pos-%d", p.seq),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		EntryPrice: req.Price,
		EntryFee:   req.Fee,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenedAt:   req.Time,
	}

	p.cash -= cost
	p.positions[pos.ID] = pos
	p.order = append(p.order, pos.ID)
	return pos, nil
}

// ClosePosition realizes the position at the given exit price, credits cash
// and appends the resulting trade. Closing an unknown or already closed id
// fails with POSITION_NOT_FOUND.
//
// Cash credit is entry notional + realized P&L - fee. For longs that equals
// quantity*exit - fee; for shorts the entry notional acts as collateral, so
// the same formula holds on both sides without margin accounting.
func (p *Portfolio) ClosePosition(id string, exitPrice, fee float64, at time.Time, reason CloseReason) (*Trade, error) {
	pos, ok := p.positions[id]
	if !ok {
		return nil, core.WrapError(core.ErrPositionNotFound, fmt.Errorf("id %s", id))
	}

	pnl := (exitPrice - pos.EntryPrice) * pos.Quantity * pos.Side.Sign()
	pnlPct := 0.0
	if pos.EntryPrice > 0 {
		pnlPct = pnl / (pos.EntryPrice * pos.Quantity) * 100
	}

	trade := Trade{
		ID:         pos.ID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		PnLPercent: pnlPct,
		Fees:       pos.EntryFee + fee,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   at,
		Duration:   at.Sub(pos.OpenedAt),
		Reason:     reason,
	}

	p.cash += pos.Notional() + pnl - fee
	p.realized += pnl
	delete(p.positions, id)
	p.removeFromOrder(id)
	p.trades = append(p.trades, trade)
	return &trade, nil
}

func (p *Portfolio) removeFromOrder(id string) {
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// Position returns the open position with the given id.
func (p *Portfolio) Position(id string) (*Position, bool) {
	pos, ok := p.positions[id]
	return pos, ok
}

// Positions returns the open positions in the order they were opened.
func (p *Portfolio) Positions() []*Position {
	out := make([]*Position, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.positions[id])
	}
	return out
}

// Trades returns the closed trades in chronological order.
func (p *Portfolio) Trades() []Trade {
	out := make([]Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// UnrealizedPnL returns the mark-to-market P&L per open position id for the
// supplied prices. Positions whose symbol is missing from the map are
// omitted. Pure read.
func (p *Portfolio) UnrealizedPnL(prices map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(p.order))
	for _, id := range p.order {
		pos := p.positions[id]
		price, ok := prices[pos.Symbol]
		if !ok {
			continue
		}
		out[id] = pos.UnrealizedPnL(price)
	}
	return out
}

// SetMark records the latest observed price for a symbol. Equity and stats
// mark open positions at these prices, falling back to entry price for
// symbols never marked.
func (p *Portfolio) SetMark(symbol string, price float64) {
	if price > 0 {
		p.marks[symbol] = price
	}
}

func (p *Portfolio) mark(pos *Position) float64 {
	if m, ok := p.marks[pos.Symbol]; ok {
		return m
	}
	return pos.EntryPrice
}

// Equity returns cash plus the value of open positions at their last known
// prices. Iteration follows insertion order so repeated runs sum floats
// identically.
func (p *Portfolio) Equity() float64 {
	equity := p.cash
	for _, id := range p.order {
		pos := p.positions[id]
		equity += pos.Notional() + pos.UnrealizedPnL(p.mark(pos))
	}
	return equity
}

// RealizedPnL returns the running sum of closed trade P&L.
func (p *Portfolio) RealizedPnL() float64 { return p.realized }

// Stats summarizes the ledger. Pure read.
func (p *Portfolio) Stats() Stats {
	var wins, losses int
	var winSum, lossSum float64
	for _, t := range p.trades {
		switch {
		case t.PnL > 0:
			wins++
			winSum += t.PnL
		case t.PnL < 0:
			losses++
			lossSum += t.PnL
		}
	}

	var unrealized float64
	for _, id := range p.order {
		pos := p.positions[id]
		unrealized += pos.UnrealizedPnL(p.mark(pos))
	}

	s := Stats{
		InitialBalance: p.initialBalance,
		Equity:         p.Equity(),
		Cash:           p.cash,
		RealizedPnL:    p.realized,
		UnrealizedPnL:  unrealized,
		TotalPnL:       p.realized + unrealized,
		OpenPositions:  len(p.order),
		ClosedTrades:   len(p.trades),
		WinningTrades:  wins,
		LosingTrades:   losses,
	}
	if p.initialBalance > 0 {
		s.PnLPercent = s.TotalPnL / p.initialBalance * 100
	}
	if len(p.trades) > 0 {
		s.WinRate = float64(wins) / float64(len(p.trades))
	}
	if wins > 0 {
		s.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = lossSum / float64(losses)
	}
	return s
}

func validateOpen(req OpenRequest) error {
	if req.Symbol == "" {
		return core.WrapError(core.ErrInvalidOrder, fmt.Errorf("empty symbol"))
	}
	if !req.Side.IsValid() {
		return core.WrapError(core.ErrInvalidOrder, fmt.Errorf("side %q", req.Side))
	}
	if req.Quantity <= 0 {
		return core.WrapError(core.ErrInvalidOrder, fmt.Errorf("quantity %v", req.Quantity))
	}
	if req.Price <= 0 {
		return core.WrapError(core.ErrInvalidOrder, fmt.Errorf("price %v", req.Price))
	}
	if req.Fee < 0 {
		return core.WrapError(core.ErrInvalidOrder, fmt.Errorf("fee %v", req.Fee))
	}
	return validateStops(req.Side, req.Price, req.StopLoss, req.TakeProfit)
}

// validateStops enforces that a stop loss sits on the loss side of entry and
// a take profit on the profit side, for the given direction.
func validateStops(side core.Side, entry, stopLoss, takeProfit float64) error {
	if stopLoss != 0 {
		if side == core.SideLong && stopLoss >= entry {
			return core.WrapError(core.ErrInvalidStopLoss,
				fmt.Errorf("stop %.4f must be below entry %.4f for long", stopLoss, entry))
		}
		if side == core.SideShort && stopLoss <= entry {
			return core.WrapError(core.ErrInvalidStopLoss,
				fmt.Errorf("stop %.4f must be above entry %.4f for short", stopLoss, entry))
		}
	}
	if takeProfit != 0 {
		if side == core.SideLong && takeProfit <= entry {
			return core.WrapError(core.ErrInvalidStopLoss,
				fmt.Errorf("target %.4f must be above entry %.4f for long", takeProfit, entry))
		}
		if side == core.SideShort && takeProfit >= entry {
			return core.WrapError(core.ErrInvalidStopLoss,
				fmt.Errorf("target %.4f must be below entry %.4f for short", takeProfit, entry))
		}
	}
	return nil
}
