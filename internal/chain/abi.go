package chain

// stakingABI describes the staking contract the frontend talks to.
const stakingABI = `[
  {"type":"function","name":"createTask","stateMutability":"payable",
   "inputs":[{"internalType":"string","name":"_taskId","type":"string"},{"internalType":"uint256","name":"_deadline","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"claimStake","stateMutability":"nonpayable",
   "inputs":[{"internalType":"string","name":"_taskId","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"failTask","stateMutability":"nonpayable",
   "inputs":[{"internalType":"string","name":"_taskId","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"getTaskDetails","stateMutability":"view",
   "inputs":[{"internalType":"string","name":"_taskId","type":"string"}],
   "outputs":[
     {"internalType":"address","name":"user","type":"address"},
     {"internalType":"uint256","name":"amount","type":"uint256"},
     {"internalType":"uint256","name":"deadline","type":"uint256"},
     {"internalType":"bool","name":"completed","type":"bool"}]}
]`
