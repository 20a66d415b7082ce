package ethereum

import (
	"io"
	"strings"
)

// Minimal ABIs for the Uniswap V3 SwapRouter, Quoter, WETH and ERC20:
// only the methods we call.

func mustRouterABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "exactInputSingle",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{
					"name": "params",
					"type": "tuple",
					"components": [
						{"name": "tokenIn",           "type": "address"},
						{"name": "tokenOut",          "type": "address"},
						{"name": "fee",               "type": "uint24"},
						{"name": "recipient",         "type": "address"},
						{"name": "deadline",          "type": "uint256"},
						{"name": "amountIn",          "type": "uint256"},
						{"name": "amountOutMinimum",  "type": "uint256"},
						{"name": "sqrtPriceLimitX96", "type": "uint160"}
					]
				}
			],
			"outputs": [
				{"name": "amountOut", "type": "uint256"}
			]
		}
	]`)
}

func mustQuoterABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "quoteExactInputSingle",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "tokenIn",           "type": "address"},
				{"name": "tokenOut",          "type": "address"},
				{"name": "fee",               "type": "uint24"},
				{"name": "amountIn",          "type": "uint256"},
				{"name": "sqrtPriceLimitX96", "type": "uint160"}
			],
			"outputs": [
				{"name": "amountOut", "type": "uint256"}
			]
		}
	]`)
}

func mustWETHABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "withdraw",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [{"name": "wad", "type": "uint256"}],
			"outputs": []
		}
	]`)
}

func mustERC20ABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "_owner", "type": "address"}],
			"outputs": [{"name": "balance", "type": "uint256"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "_owner",   "type": "address"},
				{"name": "_spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "approve",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "_spender", "type": "address"},
				{"name": "_value",   "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`)
}
