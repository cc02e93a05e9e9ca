package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs for the contracts the engine talks to. Only the methods that
// are actually called are listed.

const stakingABIJSON = `[
 {"name":"epoch","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"length","type":"uint256"},{"name":"number","type":"uint256"},
             {"name":"endBlock","type":"uint256"},{"name":"distribute","type":"uint256"}]}
]`

const stakedTokenABIJSON = `[
 {"name":"circulatingSupply","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"uint256"}]},
 {"name":"balanceOf","type":"function","stateMutability":"view",
  "inputs":[{"name":"who","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const redeemHelperABIJSON = `[
 {"name":"bonds","type":"function","stateMutability":"view",
  "inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"name":"redeemAll","type":"function","stateMutability":"nonpayable",
  "inputs":[{"name":"_recipient","type":"address"},{"name":"_stake","type":"bool"}],"outputs":[]}
]`

const bondABIJSON = `[
 {"name":"terms","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"controlVariable","type":"uint256"},{"name":"vestingTerm","type":"uint256"},
             {"name":"minimumPrice","type":"uint256"},{"name":"maxPayout","type":"uint256"},
             {"name":"fee","type":"uint256"},{"name":"maxDebt","type":"uint256"}]},
 {"name":"principle","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"address"}]},
 {"name":"isLiquidityBond","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"bool"}]},
 {"name":"pendingPayoutFor","type":"function","stateMutability":"view",
  "inputs":[{"name":"_depositor","type":"address"}],"outputs":[{"name":"pendingPayout_","type":"uint256"}]},
 {"name":"redeem","type":"function","stateMutability":"nonpayable",
  "inputs":[{"name":"_recipient","type":"address"},{"name":"_stake","type":"bool"}],
  "outputs":[{"name":"","type":"uint256"}]}
]`

const erc20ABIJSON = `[
 {"name":"symbol","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"string"}]}
]`

const pairABIJSON = `[
 {"name":"token0","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"address"}]},
 {"name":"token1","type":"function","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"address"}]}
]`

var (
	stakingABI      = mustParseABI(stakingABIJSON)
	stakedTokenABI  = mustParseABI(stakedTokenABIJSON)
	redeemHelperABI = mustParseABI(redeemHelperABIJSON)
	bondABI         = mustParseABI(bondABIJSON)
	erc20ABI        = mustParseABI(erc20ABIJSON)
	pairABI         = mustParseABI(pairABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("evm: parse abi: " + err.Error())
	}
	return parsed
}
