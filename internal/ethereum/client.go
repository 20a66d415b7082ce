package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const receiptPollInterval = 2 * time.Second

// Client is the single signing capability of the process: one wallet, one
// chain. Everything that reads balances or submits transactions goes
// through it.
type Client struct {
	rpc        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	wallet     common.Address
	chainID    *big.Int
	gasLimit   uint64
	gasMul     float64
	erc20ABI   abi.ABI
	wethABI    abi.ABI
}

func NewClient(rpcURL, privateKeyHex string, chainID int64, gasLimit int, gasMultiplier float64) (*Client, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	pkHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	eABI, err := abi.JSON(mustERC20ABI())
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}
	wABI, err := abi.JSON(mustWETHABI())
	if err != nil {
		return nil, fmt.Errorf("parse WETH ABI: %w", err)
	}

	return &Client{
		rpc:        rpc,
		privateKey: pk,
		wallet:     crypto.PubkeyToAddress(pk.PublicKey),
		chainID:    big.NewInt(chainID),
		gasLimit:   uint64(gasLimit),
		gasMul:     gasMultiplier,
		erc20ABI:   eABI,
		wethABI:    wABI,
	}, nil
}

func (c *Client) WalletAddress() common.Address { return c.wallet }
func (c *Client) GasLimit() uint64              { return c.gasLimit }
func (c *Client) Close()                        { c.rpc.Close() }

func (c *Client) ETHBalance(ctx context.Context) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, c.wallet, nil)
}

// TokenBalance returns the wallet's ERC20 balance in minor units.
func (c *Client) TokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	data, err := c.erc20ABI.Pack("balanceOf", c.wallet)
	if err != nil {
		return nil, err
	}
	result, err := c.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// Allowance returns how much of token the spender may currently move on
// the wallet's behalf.
func (c *Client) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	data, err := c.erc20ABI.Pack("allowance", c.wallet, spender)
	if err != nil {
		return nil, err
	}
	result, err := c.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("allowance call: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// Approve submits an ERC20 approval and returns the tx hash. The caller is
// responsible for waiting until it is mined before relying on it.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (string, error) {
	data, err := c.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return "", err
	}
	txHash, err := c.SignAndSend(ctx, token, big.NewInt(0), data, 0)
	if err != nil {
		return "", fmt.Errorf("approve tx: %w", err)
	}
	return txHash, nil
}

// UnwrapWETH submits a WETH withdraw, converting wrapped native back to the
// native asset.
func (c *Client) UnwrapWETH(ctx context.Context, weth common.Address, amount *big.Int) (string, error) {
	data, err := c.wethABI.Pack("withdraw", amount)
	if err != nil {
		return "", err
	}
	txHash, err := c.SignAndSend(ctx, weth, big.NewInt(0), data, 0)
	if err != nil {
		return "", fmt.Errorf("withdraw tx: %w", err)
	}
	return txHash, nil
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	// Apply multiplier
	mul := new(big.Float).SetFloat64(c.gasMul)
	adjusted := new(big.Float).Mul(new(big.Float).SetInt(price), mul)
	result, _ := adjusted.Int(nil)
	return result, nil
}

func (c *Client) Nonce(ctx context.Context) (uint64, error) {
	return c.rpc.PendingNonceAt(ctx, c.wallet)
}

// SignAndSend signs a legacy transaction and broadcasts it, returning the
// tx hash. A zero gasLimit falls back to the configured default.
func (c *Client) SignAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (string, error) {
	nonce, err := c.Nonce(ctx)
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("get gas price: %w", err)
	}
	if gasLimit == 0 {
		gasLimit = c.gasLimit
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.NewEIP155Signer(c.chainID)
	signed, err := types.SignTx(tx, signer, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	return signed.Hash().Hex(), nil
}

// WaitMined blocks until the transaction is included in a block, then
// checks the receipt status. A reverted transaction is an error.
func (c *Client) WaitMined(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)

	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted in block %d", txHash, receipt.BlockNumber)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", txHash, ctx.Err())
		case <-time.After(receiptPollInterval):
		}
	}
}

// CallContract performs a read-only eth_call and returns the raw result.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{
		"to":   to.Hex(),
		"data": fmt.Sprintf("0x%x", data),
	}
	var result string
	err := c.rpc.Client().CallContext(ctx, &result, "eth_call", msg, "latest")
	if err != nil {
		return nil, err
	}
	return common.FromHex(result), nil
}
