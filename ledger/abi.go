package ledger

// Read-only subsets of the hbbft POSDAO system contract ABIs.

const validatorSetABI = `[
{"type":"function","name":"getValidators","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"getPendingValidators","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"miningByStakingAddress","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getPublicKey","stateMutability":"view","inputs":[{"name":"_miningAddress","type":"address"}],"outputs":[{"name":"","type":"bytes"}]},
{"type":"function","name":"bannedUntil","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"banCounter","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"validatorAvailableSince","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const stakingABI = `[
{"type":"function","name":"candidateMinStake","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"delegatorMinStake","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakingFixedEpochDuration","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakingWithdrawDisallowPeriod","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakingEpoch","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakingEpochStartBlock","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakingEpochStartTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakingFixedEpochEndTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"areStakeAndWithdrawAllowed","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getPools","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"getPoolsInactive","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"getPoolsToBeElected","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"stakeAmount","stateMutability":"view","inputs":[{"name":"","type":"address"},{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakeAmountTotal","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"stakeFirstEpoch","stateMutability":"view","inputs":[{"name":"","type":"address"},{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getRewardAmount","stateMutability":"view","inputs":[{"name":"_stakingEpochs","type":"uint256[]"},{"name":"_poolStakingAddress","type":"address"},{"name":"_staker","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const blockRewardABI = `[
{"type":"function","name":"deltaPot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"reinsertPot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const keyGenHistoryABI = `[
{"type":"function","name":"parts","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bytes"}]},
{"type":"function","name":"getAcksLength","stateMutability":"view","inputs":[{"name":"val","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`
