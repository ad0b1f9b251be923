// Package chain reads and reviews violations held by the ViolationChain smart contract.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Jwl06/civicledger360/models"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "chain"

// ErrReadOnly is returned by Review when no signing key is configured.
var ErrReadOnly = errors.New("chain client has no signing key")

// Contract is the subset of *bind.BoundContract the client needs.
type Contract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// Config selects the node, contract and signing key.
type Config struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string // hex, optional; without it the client is read-only
	ChainID         int64  // 0 asks the node
	CacheTTL        time.Duration
}

// Client is the chain-side violation store.
type Client struct {
	contract Contract
	backend  bind.DeployBackend
	auth     *bind.TransactOpts
	cache    *expirable.LRU[int64, models.Violation]
	log      *zap.Logger
	closeFn  func()
}

// Dial connects to cfg.RPCURL and binds the violation contract.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(violationChainABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, &models.ExternalServiceError{Service: serviceName, Err: err}
	}

	var auth *bind.TransactOpts
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("invalid chain private key: %w", err)
		}
		chainID := big.NewInt(cfg.ChainID)
		if cfg.ChainID == 0 {
			if chainID, err = ec.ChainID(ctx); err != nil {
				ec.Close()
				return nil, &models.ExternalServiceError{Service: serviceName, Err: err}
			}
		}
		if auth, err = bind.NewKeyedTransactorWithChainID(key, chainID); err != nil {
			ec.Close()
			return nil, fmt.Errorf("failed to build transactor: %w", err)
		}
		log.Info("chain signer configured", zap.String("from", auth.From.Hex()), zap.String("chainId", chainID.String()))
	}

	bound := bind.NewBoundContract(common.HexToAddress(cfg.ContractAddress), parsed, ec, ec, ec)
	c := New(bound, ec, auth, cfg.CacheTTL, log)
	c.closeFn = ec.Close
	return c, nil
}

// New builds a client over an already bound contract. auth may be nil for read-only use.
func New(contract Contract, backend bind.DeployBackend, auth *bind.TransactOpts, cacheTTL time.Duration, log *zap.Logger) *Client {
	c := &Client{
		contract: contract,
		backend:  backend,
		auth:     auth,
		log:      log,
	}
	if cacheTTL > 0 {
		c.cache = expirable.NewLRU[int64, models.Violation](1024, nil, cacheTTL)
	}
	return c
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Name identifies the source in poll snapshots.
func (c *Client) Name() string {
	return serviceName
}

// ListPending returns the violations the contract reports as pending.
func (c *Client) ListPending(ctx context.Context) ([]models.Violation, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPendingViolations"); err != nil {
		return nil, &models.ExternalServiceError{Service: serviceName, Err: err}
	}
	ids := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)

	violations := make([]models.Violation, 0, len(ids))
	for _, id := range ids {
		if !id.IsInt64() {
			return nil, &models.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("violation id %s overflows int64", id)}
		}
		v, err := c.GetViolation(ctx, id.Int64())
		if err != nil {
			return nil, err
		}
		// The pending index can lag behind a just-mined review.
		if v.Status == models.ViolationPending {
			violations = append(violations, v)
		}
	}
	return violations, nil
}

// ListAll walks every violation id from 1 to violationCount.
func (c *Client) ListAll(ctx context.Context) ([]models.Violation, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "violationCount"); err != nil {
		return nil, &models.ExternalServiceError{Service: serviceName, Err: err}
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !count.IsInt64() {
		return nil, &models.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("violation count %s overflows int64", count)}
	}

	n := count.Int64()
	violations := make([]models.Violation, 0, n)
	for id := int64(1); id <= n; id++ {
		v, err := c.GetViolation(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, nil
}

// GetViolation reads one violation, served from the cache when fresh.
func (c *Client) GetViolation(ctx context.Context, id int64) (models.Violation, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(id); ok {
			return v, nil
		}
	}
	v, err := c.fetchViolation(ctx, id)
	if err != nil {
		return models.Violation{}, err
	}
	if c.cache != nil {
		c.cache.Add(id, v)
	}
	return v, nil
}

func (c *Client) fetchViolation(ctx context.Context, id int64) (models.Violation, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getViolation", big.NewInt(id)); err != nil {
		return models.Violation{}, &models.ExternalServiceError{Service: serviceName, Err: err}
	}
	if len(out) != 11 {
		return models.Violation{}, &models.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("getViolation returned %d values", len(out))}
	}

	reporter := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if reporter == (common.Address{}) {
		return models.Violation{}, models.ErrNotFound
	}
	vehicleID := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	typeCode := *abi.ConvertType(out[2], new(uint8)).(*uint8)
	description := *abi.ConvertType(out[3], new(string)).(*string)
	evidence := *abi.ConvertType(out[4], new(string)).(*string)
	submitted := *abi.ConvertType(out[5], new(*big.Int)).(**big.Int)
	statusCode := *abi.ConvertType(out[6], new(uint8)).(*uint8)
	reviewer := *abi.ConvertType(out[7], new(common.Address)).(*common.Address)
	reviewedAt := *abi.ConvertType(out[8], new(*big.Int)).(**big.Int)
	fine := *abi.ConvertType(out[9], new(*big.Int)).(**big.Int)
	isPaid := *abi.ConvertType(out[10], new(bool)).(*bool)

	violationType, err := models.ViolationTypeFromCode(int(typeCode))
	if err != nil {
		violationType = models.ViolationOther
	}
	status, err := models.ViolationStatusFromCode(statusCode)
	if err != nil {
		return models.Violation{}, &models.ExternalServiceError{Service: serviceName, Err: err}
	}
	if !vehicleID.IsInt64() {
		return models.Violation{}, &models.ExternalServiceError{
			Service: serviceName,
			Err:     fmt.Errorf("vehicle id %s overflows int64", vehicleID),
		}
	}

	v := models.Violation{
		ID:            id,
		Reporter:      reporter.Hex(),
		VehicleID:     vehicleID.Int64(),
		ViolationType: violationType,
		Description:   description,
		EvidenceURL:   evidence,
		Status:        status,
		FineAmount:    decimal.NewFromBigInt(fine, 0),
		IsPaid:        isPaid,
		SubmittedAt:   time.Unix(submitted.Int64(), 0).UTC(),
		Source:        models.SourceChain,
	}
	if reviewer != (common.Address{}) {
		r := reviewer.Hex()
		v.Reviewer = &r
	}
	if reviewedAt.Sign() > 0 {
		ts := time.Unix(reviewedAt.Int64(), 0).UTC()
		v.ReviewTimestamp = &ts
	}
	return v, nil
}

// Review submits reviewViolation and waits for it to be mined. The same input rules
// as the backend apply; fines must be whole token units on chain.
func (c *Client) Review(ctx context.Context, id int64, in models.ReviewInput) (models.Violation, error) {
	if err := in.Validate(); err != nil {
		return models.Violation{}, err
	}
	if c.auth == nil {
		return models.Violation{}, ErrReadOnly
	}

	current, err := c.fetchViolation(ctx, id)
	if err != nil {
		return models.Violation{}, err
	}
	if current.Status != models.ViolationPending {
		return current, models.ErrInvalidTransition
	}

	fine := big.NewInt(0)
	if in.Decision == models.ViolationApproved && in.FineAmount != nil {
		if !in.FineAmount.Equal(in.FineAmount.Truncate(0)) {
			return current, models.NewValidationError("fineAmount", "on-chain fines must be whole units")
		}
		fine = in.FineAmount.BigInt()
	}
	statusCode, _ := in.Decision.Code()

	opts := *c.auth
	opts.Context = ctx
	tx, err := c.contract.Transact(&opts, "reviewViolation", big.NewInt(id), statusCode, fine)
	if err != nil {
		return current, &models.ExternalServiceError{Service: serviceName, Err: err}
	}
	c.log.Info("review transaction sent", zap.Int64("violationId", id), zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return current, &models.ExternalServiceError{Service: serviceName, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return current, &models.ExternalServiceError{Service: serviceName, Err: fmt.Errorf("review transaction %s reverted", tx.Hash().Hex())}
	}

	if c.cache != nil {
		c.cache.Remove(id)
	}
	return c.GetViolation(ctx, id)
}
