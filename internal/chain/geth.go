package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/apperrors"
	"github.com/riddles-are-us/permissionless-onchain-orderbook/internal/config"
)

// receiptPollInterval mirrors go-ethereum's own bind.WaitMined polling
// cadence for a transaction that has not yet been mined.
const receiptPollInterval = 1 * time.Second

// GethReader implements Reader over an ethclient.Client. Contract call
// encoding/decoding goes through the hand-written ABI packer in
// encoding.go: no abigen output is available anywhere in the retrieved
// corpus, so this stands in for generated bindings (see DESIGN.md).
type GethReader struct {
	client    *ethclient.Client
	sequencer common.Address
	orderBook common.Address
	logger    log.Logger
}

// NewGethReader dials the configured RPC endpoint and returns a Reader.
func NewGethReader(ctx context.Context, cfg config.Config, logger log.Logger) (*GethReader, error) {
	client, err := ethclient.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		return nil, apperrors.ErrTransportDisconnected.Wrap(err.Error())
	}
	return &GethReader{
		client:    client,
		sequencer: common.HexToAddress(cfg.Contracts.Sequencer),
		orderBook: common.HexToAddress(cfg.Contracts.OrderBook),
		logger:    logger.With("component", "chain.reader"),
	}, nil
}

func (g *GethReader) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := g.client.BlockNumber(ctx)
	if err != nil {
		return 0, apperrors.ErrContractCallFailed.Wrap(err.Error())
	}
	return n, nil
}

func (g *GethReader) callView(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	out, err := g.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, apperrors.ErrContractCallFailed.Wrap(err.Error())
	}
	return out, nil
}

func (g *GethReader) QueueHead(ctx context.Context) (uint256.Int, error) {
	out, err := g.callView(ctx, g.sequencer, packQueueHead())
	if err != nil {
		return uint256.Int{}, err
	}
	return unpackQueueHead(out)
}

func (g *GethReader) QueuedRequest(ctx context.Context, requestID uint256.Int) (QueuedRequestData, error) {
	out, err := g.callView(ctx, g.sequencer, packQueuedRequests(requestID))
	if err != nil {
		return QueuedRequestData{}, err
	}
	return unpackQueuedRequests(out)
}

func (g *GethReader) OrderBookBounds(ctx context.Context, tradingPair common.Hash) (OrderBookBounds, error) {
	out, err := g.callView(ctx, g.orderBook, packOrderBooks(tradingPair))
	if err != nil {
		return OrderBookBounds{}, err
	}
	return unpackOrderBooks(out)
}

func (g *GethReader) PriceLevel(ctx context.Context, price uint256.Int, isAsk bool) (PriceLevelData, error) {
	out, err := g.callView(ctx, g.orderBook, packGetPriceLevel(price, isAsk))
	if err != nil {
		return PriceLevelData{}, err
	}
	return unpackPriceLevel(out)
}

func (g *GethReader) Order(ctx context.Context, orderID uint256.Int) (OrderData, error) {
	out, err := g.callView(ctx, g.orderBook, packOrders(orderID))
	if err != nil {
		return OrderData{}, err
	}
	return unpackOrder(out)
}

// gethTxSubmitter implements TxSubmitter by signing and broadcasting a
// batch_process_requests transaction, following the shape of the
// teacher's own BatchSubmitter (offchain/matcher/submitter.go) with
// real signing substituted for its stubbed broadcast payload.
type gethTxSubmitter struct {
	client     *ethclient.Client
	orderBook  common.Address
	from       common.Address
	privateKey *ecdsa.PrivateKey
	chainID    *big.Int
	gasPrice   int64
	gasLimit   uint64
	logger     log.Logger

	status SubmitterStatus
}

// NewGethTxSubmitter constructs a TxSubmitter backed by a live client.
func NewGethTxSubmitter(client *ethclient.Client, cfg config.Config, logger log.Logger) (TxSubmitter, error) {
	key, err := crypto.HexToECDSA(cfg.Executor.PrivateKey)
	if err != nil {
		return nil, apperrors.ErrInvalidConfig.Wrap("executor.private_key: " + err.Error())
	}
	return &gethTxSubmitter{
		client:     client,
		orderBook:  common.HexToAddress(cfg.Contracts.OrderBook),
		from:       crypto.PubkeyToAddress(key.PublicKey),
		privateKey: key,
		chainID:    new(big.Int).SetUint64(cfg.Network.ChainID),
		gasPrice:   cfg.Executor.GasPriceGwei,
		gasLimit:   cfg.Executor.GasLimit,
		logger:     logger.With("component", "chain.submitter"),
		status:     SubmitterStatus{Connected: true},
	}, nil
}

func (s *gethTxSubmitter) SubmitBatch(ctx context.Context, req BatchRequest) (common.Hash, error) {
	data := packBatchProcessRequests(req)

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, apperrors.ErrContractCallFailed.Wrap(err.Error())
	}

	gasPrice := new(big.Int).Mul(big.NewInt(s.gasPrice), big.NewInt(1_000_000_000))
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.orderBook,
		Gas:      s.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return common.Hash{}, apperrors.ErrContractCallFailed.Wrap(err.Error())
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		s.status.FailedBatches++
		return common.Hash{}, apperrors.ErrContractCallFailed.Wrap(err.Error())
	}
	s.status.TotalSubmissions++
	return signed.Hash(), nil
}

// AwaitReceipt polls for the transaction's receipt, the way
// go-ethereum's bind.WaitMined does, since a just-broadcast transaction
// has no receipt until it is mined. A context deadline or cancellation
// (§5: no intrinsic RPC timeout beyond the transport's default) is the
// only bound on how long this waits.
func (s *gethTxSubmitter) AwaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			return nil, apperrors.ErrContractCallFailed.Wrap(err.Error())
		}
		select {
		case <-ctx.Done():
			return nil, apperrors.ErrContractCallFailed.Wrap(ctx.Err().Error())
		case <-ticker.C:
		}
	}
}

func (s *gethTxSubmitter) GetStatus() SubmitterStatus { return s.status }
