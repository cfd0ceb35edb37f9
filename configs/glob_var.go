package configs

import "time"

// Debugging parameters.
var (
	ShowDebugInfo = false
	ShowWarnings  = ShowDebugInfo
	ShowTestInfo  = ShowDebugInfo
	LogToFile     = false
)

// Message marks used in debug output.
const (
	Proposal        string = "[msg] proposal for the acceptors"
	ProposalACK     string = "[msg] ack for an accepted proposal"
	ProposalNACK    string = "[msg] nack carrying the refined value"
	InternalReceive string = "[msg] value received on another proposer"
	LearnerACK      string = "[msg] ack forwarded to the learners"
	RegisterValue   string = "[msg] classifier value exchange"
	RegisterWrite   string = "[msg] classifier register write"
	RegisterRead    string = "[msg] classifier register read"

	// FaleiroLA et,al. the protocol codes.
	FaleiroLA  = "faleiro"
	FaleiroGLA = "gla"
	ZhengLA    = "zheng"

	Normal      = "normal"
	Exponential = "exp"
	Plain       = "plain"
)

// System parameters.
const (
	MaxConnectionHandler = 16
	MaxMessageHandler    = 16
	MaxMessageBacklog    = 1024
	MaxDialRetry         = 5
	DialRetryInterval    = 20 * time.Millisecond
	LogBatchInterval     = 10 * time.Millisecond
	RegisterTimeout      = 30 * time.Second
)

// Test parameters that could be changed by args.
var (
	NumberOfProcesses        = 3
	MaxFaulty                = 1
	SelectedProtocol         = FaleiroLA
	CoordinatorServerAddress = "127.0.0.1:5001"
	ConfigFileLocation       = "./configs/remote.json"
	UseWAL                   = false
	WALLocation              = "./logs/results"

	// Artificial per-send delay, only for benchmark realism. The send
	// path skips the sleep entirely unless SimulateNetworkDelay is set.
	SimulateNetworkDelay = false
	Distribution         = Normal
	DelayMean            = 0 * time.Millisecond
	DelayStdDev          = 5 * time.Millisecond

	// GLA workload knobs.
	ElementDomain    = int64(10000)
	ValueSkewness    = 0.9
	StreamLength     = 8
	StreamInterval   = 10 * time.Millisecond
	SimulateWorkload = false
)
