// Package exchange
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/amirphl/futures-trader/internal/utils"
)

// BinanceExchange talks to Binance USD-M futures.
type BinanceExchange struct {
	client *futures.Client
}

// NewBinanceExchange builds the futures gateway. With testnet set, all
// requests go to the futures testnet.
func NewBinanceExchange(apiKey, apiSecret string, testnet bool) (Exchange, error) {
	if testnet {
		futures.UseTestnet = true
	}
	client := binance.NewFuturesClient(apiKey, apiSecret)

	// Connectivity check up front so a bad key fails at startup, not on the
	// first order.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping failed: %w", err)
	}

	utils.GetLogger().Printf("Exchange | Binance futures client initialized (testnet=%v)", testnet)
	return &BinanceExchange{client: client}, nil
}

func (b *BinanceExchange) Name() string {
	return "binance-futures"
}

// wrapErr converts go-binance structured errors into *APIError so callers can
// distinguish trading rejections from transport failures.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}

func (b *BinanceExchange) CreateOrder(ctx context.Context, params OrderParams) (Order, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(params.Symbol).
		Side(futures.SideType(params.Side)).
		Type(futures.OrderType(params.Type)).
		Quantity(params.Quantity)
	if params.Price != "" {
		svc = svc.Price(params.Price)
	}
	if params.StopPrice != "" {
		svc = svc.StopPrice(params.StopPrice)
	}
	if params.TimeInForce != "" {
		svc = svc.TimeInForce(futures.TimeInForceType(params.TimeInForce))
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return Order{}, wrapErr(err)
	}

	return Order{
		OrderID:     resp.OrderID,
		Symbol:      resp.Symbol,
		Side:        string(resp.Side),
		Type:        string(resp.Type),
		Status:      string(resp.Status),
		Price:       resp.Price,
		StopPrice:   resp.StopPrice,
		OrigQty:     resp.OrigQuantity,
		ExecutedQty: resp.ExecutedQuantity,
		AvgPrice:    resp.AvgPrice,
		UpdatedAt:   time.UnixMilli(resp.UpdateTime).UTC(),
	}, nil
}

func (b *BinanceExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (Order, error) {
	resp, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return Order{}, wrapErr(err)
	}

	return Order{
		OrderID:     resp.OrderID,
		Symbol:      resp.Symbol,
		Side:        string(resp.Side),
		Type:        string(resp.Type),
		Status:      string(resp.Status),
		Price:       resp.Price,
		StopPrice:   resp.StopPrice,
		OrigQty:     resp.OrigQuantity,
		ExecutedQty: resp.ExecutedQuantity,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

func (b *BinanceExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (Order, error) {
	resp, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return Order{}, wrapErr(err)
	}
	return fromFuturesOrder(resp), nil
}

func (b *BinanceExchange) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	svc := b.client.NewListOpenOrdersService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}

	orders := make([]Order, 0, len(resp))
	for _, o := range resp {
		orders = append(orders, fromFuturesOrder(o))
	}
	return orders, nil
}

// SymbolFilters fetches exchange-wide metadata and extracts the PRICE_FILTER
// and LOT_SIZE constraints for the symbol. Re-fetched per operation; no cache.
func (b *BinanceExchange) SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return SymbolFilters{}, wrapErr(err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}

		priceFilter := s.PriceFilter()
		lotFilter := s.LotSizeFilter()
		if priceFilter == nil || lotFilter == nil {
			return SymbolFilters{}, fmt.Errorf("symbol %s missing price or lot size filter", symbol)
		}

		tickSize, err := decimal.NewFromString(priceFilter.TickSize)
		if err != nil {
			return SymbolFilters{}, fmt.Errorf("parsing tick size %q: %w", priceFilter.TickSize, err)
		}
		stepSize, err := decimal.NewFromString(lotFilter.StepSize)
		if err != nil {
			return SymbolFilters{}, fmt.Errorf("parsing step size %q: %w", lotFilter.StepSize, err)
		}
		minQty, err := decimal.NewFromString(lotFilter.MinQuantity)
		if err != nil {
			return SymbolFilters{}, fmt.Errorf("parsing min qty %q: %w", lotFilter.MinQuantity, err)
		}
		maxQty, err := decimal.NewFromString(lotFilter.MaxQuantity)
		if err != nil {
			return SymbolFilters{}, fmt.Errorf("parsing max qty %q: %w", lotFilter.MaxQuantity, err)
		}

		return SymbolFilters{
			Symbol:   symbol,
			TickSize: tickSize,
			StepSize: stepSize,
			MinQty:   minQty,
			MaxQty:   maxQty,
		}, nil
	}

	return SymbolFilters{}, fmt.Errorf("symbol %s not found", symbol)
}

func (b *BinanceExchange) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, wrapErr(err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("no price returned for symbol %s", symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

func fromFuturesOrder(o *futures.Order) Order {
	return Order{
		OrderID:     o.OrderID,
		Symbol:      o.Symbol,
		Side:        string(o.Side),
		Type:        string(o.Type),
		Status:      string(o.Status),
		Price:       o.Price,
		StopPrice:   o.StopPrice,
		OrigQty:     o.OrigQuantity,
		ExecutedQty: o.ExecutedQuantity,
		AvgPrice:    o.AvgPrice,
		UpdatedAt:   time.UnixMilli(o.UpdateTime).UTC(),
	}
}
