package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lsds/kungfu-shmem/srcs/go/utils"
)

const (
	EnableStallDetectionEnvKey = `KUNGFU_CONFIG_ENABLE_STALL_DETECTION`
	StallPeriodEnvKey          = `KUNGFU_CONFIG_STALL_PERIOD`
	LogLevelEnvKey             = `KUNGFU_CONFIG_LOG_LEVEL`
	TreeDegreeEnvKey           = `TREE_DEGREE`
	KnomialRadixEnvKey         = `KNOMIAL_RADIX`
	WaitBackoffEnvKey          = `WAIT_BACKOFF`
)

// Algorithm selection, one variable per collective operation.
// The value is `name` or `name,name:type,...` for per-type overrides.
const (
	BarrierAlgoEnvKey   = `BARRIER_ALGO`
	SyncAlgoEnvKey      = `SYNC_ALGO`
	BroadcastAlgoEnvKey = `BROADCAST_ALGO`
	CollectAlgoEnvKey   = `COLLECT_ALGO`
	FCollectAlgoEnvKey  = `FCOLLECT_ALGO`
	AllToAllAlgoEnvKey  = `ALLTOALL_ALGO`
	AllToAllsAlgoEnvKey = `ALLTOALLS_ALGO`
	ReduceAlgoEnvKey    = `REDUCE_ALGO`
)

var ConfigEnvKeys = []string{
	EnableStallDetectionEnvKey,
	StallPeriodEnvKey,
	LogLevelEnvKey,
	TreeDegreeEnvKey,
	KnomialRadixEnvKey,
	WaitBackoffEnvKey,
}

var AlgoEnvKeys = []string{
	BarrierAlgoEnvKey,
	SyncAlgoEnvKey,
	BroadcastAlgoEnvKey,
	CollectAlgoEnvKey,
	FCollectAlgoEnvKey,
	AllToAllAlgoEnvKey,
	AllToAllsAlgoEnvKey,
	ReduceAlgoEnvKey,
}

var logLevels = []string{`DEBUG`, `INFO`, `WARN`, `ERROR`}

var waitBackoffs = []string{`spin`, `yield`, `exp`}

// Config holds the process-wide tunables. Algorithm names are not part of it,
// the registry resolves them lazily from the same environment.
type Config struct {
	EnableStallDetection bool
	StallPeriod          time.Duration
	LogLevel             string
	TreeDegree           int
	KnomialRadix         int
	WaitBackoff          string
}

var Default = Config{
	EnableStallDetection: false,
	StallPeriod:          3 * time.Second,
	LogLevel:             `INFO`,
	TreeDegree:           2,
	KnomialRadix:         4,
	WaitBackoff:          `yield`,
}

var (
	EnableStallDetection = Default.EnableStallDetection
	StallPeriod          = Default.StallPeriod
	LogLevel             = Default.LogLevel
	TreeDegree           = Default.TreeDegree
	KnomialRadix         = Default.KnomialRadix
	WaitBackoff          = Default.WaitBackoff
)

func init() {
	c, err := FromEnv(os.Getenv)
	if err != nil {
		utils.ExitErr(err)
	}
	Apply(c)
}

// Apply overrides the process-wide values.
func Apply(c *Config) {
	EnableStallDetection = c.EnableStallDetection
	StallPeriod = c.StallPeriod
	LogLevel = c.LogLevel
	TreeDegree = c.TreeDegree
	KnomialRadix = c.KnomialRadix
	WaitBackoff = c.WaitBackoff
}

// Current returns the process-wide values.
func Current() *Config {
	return &Config{
		EnableStallDetection: EnableStallDetection,
		StallPeriod:          StallPeriod,
		LogLevel:             LogLevel,
		TreeDegree:           TreeDegree,
		KnomialRadix:         KnomialRadix,
		WaitBackoff:          WaitBackoff,
	}
}

func FromEnv(getenv func(string) string) (*Config, error) {
	c := Default
	if val := getenv(EnableStallDetectionEnvKey); len(val) > 0 {
		c.EnableStallDetection = isTrue(val)
	}
	if val := getenv(StallPeriodEnvKey); len(val) > 0 {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", StallPeriodEnvKey, err)
		}
		c.StallPeriod = d
	}
	if val := getenv(LogLevelEnvKey); len(val) > 0 {
		c.LogLevel = strings.ToUpper(val)
		if !oneOf(c.LogLevel, logLevels) {
			return nil, fmt.Errorf("invalid %s: %q", LogLevelEnvKey, val)
		}
	}
	if val := getenv(TreeDegreeEnvKey); len(val) > 0 {
		n, err := parsePositive(TreeDegreeEnvKey, val, 1)
		if err != nil {
			return nil, err
		}
		c.TreeDegree = n
	}
	if val := getenv(KnomialRadixEnvKey); len(val) > 0 {
		n, err := parsePositive(KnomialRadixEnvKey, val, 2)
		if err != nil {
			return nil, err
		}
		c.KnomialRadix = n
	}
	if val := getenv(WaitBackoffEnvKey); len(val) > 0 {
		c.WaitBackoff = strings.ToLower(val)
		if !oneOf(c.WaitBackoff, waitBackoffs) {
			return nil, fmt.Errorf("invalid %s: %q", WaitBackoffEnvKey, val)
		}
	}
	return &c, nil
}

func parsePositive(key, val string, min int) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < min {
		return 0, fmt.Errorf("invalid %s: %d < %d", key, n, min)
	}
	return n, nil
}

func isTrue(val string) bool {
	return val == "true"
}

func oneOf(s string, ss []string) bool {
	for _, x := range ss {
		if s == x {
			return true
		}
	}
	return false
}
