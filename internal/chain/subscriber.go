package chain

import (
	"context"
	"encoding/json"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/apperrors"
)

// WSEventSubscriber subscribes to the OrderBook and Sequencer event
// streams over a websocket connection to the configured RPC endpoint,
// following the teacher's Config.WebSocketURL field and dependency on
// gorilla/websocket (offchain/matcher.Config, go.mod).
type WSEventSubscriber struct {
	url    string
	logger log.Logger
}

// NewWSEventSubscriber returns a subscriber for the given websocket URL.
func NewWSEventSubscriber(url string, logger log.Logger) *WSEventSubscriber {
	return &WSEventSubscriber{url: url, logger: logger.With("component", "chain.subscriber")}
}

// wireEvent is the on-the-wire shape of a single event notification;
// real field population depends on the chain's own JSON-RPC subscription
// format, which is not reproduced here (out of scope per §1).
type wireEvent struct {
	Kind            string `json:"kind"`
	BlockNumber     uint64 `json:"blockNumber"`
	LogIndex        uint   `json:"logIndex"`
	OrderID         string `json:"orderId"`
	Price           string `json:"price"`
	Amount          string `json:"amount"`
	IsAsk           bool   `json:"isAsk"`
	FilledAmount    string `json:"filledAmount"`
	IsFullyFilled   bool   `json:"isFullyFilled"`
	BuyOrderID      string `json:"buyOrderId"`
	SellOrderID     string `json:"sellOrderId"`
	RequestID       string `json:"requestId"`
	TradingPair     string `json:"tradingPair"`
	Trader          string `json:"trader"`
	OrderType       uint8  `json:"orderType"`
	OrderIDToRemove string `json:"orderIdToRemove"`
}

var wireKindToEventKind = map[string]EventKind{
	"Trade":                 EventTrade,
	"OrderFilled":           EventOrderFilled,
	"OrderRemoved":          EventOrderRemoved,
	"OrderInserted":         EventOrderInserted,
	"PriceLevelCreated":     EventPriceLevelCreated,
	"PriceLevelRemoved":     EventPriceLevelRemoved,
	"MarketOrderRemoved":    EventMarketOrderRemoved,
	"PlaceOrderRequested":   EventPlaceOrderRequested,
	"RemoveOrderRequested":  EventRemoveOrderRequested,
}

// Subscribe dials the websocket endpoint, requests events starting at
// fromBlock, and decodes each notification into an Event. The returned
// channels are closed when ctx is cancelled or the connection drops;
// per §5/§7, a dropped connection is fatal to the caller's task.
func (s *WSEventSubscriber) Subscribe(ctx context.Context, fromBlock uint64) (<-chan Event, <-chan error) {
	events := make(chan Event, 256)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			errs <- apperrors.ErrTransportDisconnected.Wrap(err.Error())
			return
		}
		defer conn.Close()

		subReq := map[string]any{"method": "subscribe", "fromBlock": fromBlock}
		if err := conn.WriteJSON(subReq); err != nil {
			errs <- apperrors.ErrTransportDisconnected.Wrap(err.Error())
			return
		}

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-ctx.Done():
				default:
					errs <- apperrors.ErrTransportDisconnected.Wrap(err.Error())
				}
				return
			}

			var we wireEvent
			if err := json.Unmarshal(raw, &we); err != nil {
				s.logger.Debug("dropping malformed event payload", "error", err)
				continue
			}
			ev, ok := decodeWireEvent(we)
			if !ok {
				s.logger.Warn("unknown event kind", "kind", we.Kind)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs
}

func decodeWireEvent(we wireEvent) (Event, bool) {
	kind, ok := wireKindToEventKind[we.Kind]
	if !ok {
		return Event{}, false
	}
	return Event{
		Kind:            kind,
		BlockNumber:     we.BlockNumber,
		LogIndex:        we.LogIndex,
		OrderID:         parseU256(we.OrderID),
		Price:           parseU256(we.Price),
		Amount:          parseU256(we.Amount),
		IsAsk:           we.IsAsk,
		FilledAmount:    parseU256(we.FilledAmount),
		IsFullyFilled:   we.IsFullyFilled,
		BuyOrderID:      parseU256(we.BuyOrderID),
		SellOrderID:     parseU256(we.SellOrderID),
		RequestID:       parseU256(we.RequestID),
		TradingPair:     common.HexToHash(we.TradingPair),
		Trader:          common.HexToAddress(we.Trader),
		OrderType:       we.OrderType,
		OrderIDToRemove: parseU256(we.OrderIDToRemove),
	}, true
}

// parseU256 decodes a hex or decimal string into a uint256.Int,
// returning the zero value for empty or malformed input: a malformed
// numeric field in an otherwise-recognized event should not drop the
// whole notification.
func parseU256(s string) uint256.Int {
	if s == "" {
		return uint256.Int{}
	}
	var v uint256.Int
	if err := v.SetFromDecimal(s); err == nil {
		return v
	}
	if parsed, err := uint256.FromHex(s); err == nil {
		return *parsed
	}
	return uint256.Int{}
}
