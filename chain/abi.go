package chain

// violationChainABI covers the ViolationChain contract functions the backend uses.
const violationChainABI = `[
  {"type":"function","name":"violationCount","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPendingViolations","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getViolation","stateMutability":"view",
   "inputs":[{"name":"violationId","type":"uint256"}],
   "outputs":[
     {"name":"reporter","type":"address"},
     {"name":"vehicleId","type":"uint256"},
     {"name":"violationType","type":"uint8"},
     {"name":"description","type":"string"},
     {"name":"ipfsHash","type":"string"},
     {"name":"timestamp","type":"uint256"},
     {"name":"status","type":"uint8"},
     {"name":"reviewer","type":"address"},
     {"name":"reviewTimestamp","type":"uint256"},
     {"name":"fineAmount","type":"uint256"},
     {"name":"isPaid","type":"bool"}
   ]},
  {"type":"function","name":"reviewViolation","stateMutability":"nonpayable",
   "inputs":[
     {"name":"violationId","type":"uint256"},
     {"name":"status","type":"uint8"},
     {"name":"fineAmount","type":"uint256"}
   ],
   "outputs":[]}
]`
