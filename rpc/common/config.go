package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4/config"
	"github.com/yanqingluo/dble/lib/seqconf"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Transport configuration structs (shared by client and server)
// --------------------------------------------------------------------------

// SocketConf holds socket buffer sizes in bytes. 0 keeps the OS default.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative keeps the OS default
}

// ServerTransportConfig configures the listening side of a transport.
type ServerTransportConfig struct {
	Endpoint          string
	WorkersPerConn    int
	ReadBufferInBytes int
	SocketConf        SocketConf
	TCPConf           TCPConf
}

// ClientTransportConfig configures the connecting side of a transport.
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf             SocketConf
	TCPConf                TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeLocalTable  ServerShardType = "table(lstore)"
	ShardTypePebbleTable ServerShardType = "table(pstore)"
	ShardTypeRemoteTable ServerShardType = "table(dstore)"
	ShardTypeAllocator   ServerShardType = "allocator"
)

// ParseShardType converts the name used on the command line into a ServerShardType
func ParseShardType(name string) (ServerShardType, error) {
	switch t := ServerShardType(strings.TrimSpace(name)); t {
	case ShardTypeLocalTable, ShardTypePebbleTable, ShardTypeRemoteTable, ShardTypeAllocator:
		return t, nil
	default:
		return "", fmt.Errorf("invalid shard type: %s (expected one of: %s, %s, %s, %s)", name,
			ShardTypeLocalTable, ShardTypePebbleTable, ShardTypeRemoteTable, ShardTypeAllocator)
	}
}

// IsTable reports whether the shard serves a sequence table
func (t ServerShardType) IsTable() bool {
	return t == ShardTypeLocalTable || t == ShardTypePebbleTable || t == ShardTypeRemoteTable
}

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type is what the shard serves
	Type ServerShardType
}

// BackendTarget is a named data node the allocator reserves segments from.
// The URL selects the executor: local:<shardId>, postgres://, redis://, mongodb:// or dseq://.
type BackendTarget struct {
	Name     string
	URL      string
	ReadOnly bool
}

// SequenceConfig holds the settings of the allocator shard.
type SequenceConfig struct {
	Targets        []BackendTarget
	ConfigFile     string
	LowerCaseNames bool
	Nacos          seqconf.NacosConfig // used if Nacos.DataID is set
	WaitTimeout    time.Duration
	RefillTimeout  time.Duration
	BackendConns   int
	InstallSchema  bool // create the postgres schema on start
}

// UsesNacos reports whether the mapping is read from nacos instead of a file
func (c SequenceConfig) UsesNacos() bool {
	return c.Nacos.DataID != ""
}

// ServerConfig holds all configuration parameters for the server.
type ServerConfig struct {
	// shards served by this node
	Shards []ServerShard

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// remote table parameters
	TimeoutSecond int64

	// RPC transport settings
	Transport ServerTransportConfig

	// HTTP admin api, disabled if empty
	AdminEndpoint string

	// allocator settings
	Sequence SequenceConfig

	// Logging configuration
	LogLevel string
}

// HasRemoteShard checks if the configuration contains any replicated shards
func (c *ServerConfig) HasRemoteShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeRemoteTable {
			return true
		}
	}
	return false
}

// HasAllocator checks if the configuration contains an allocator shard
func (c *ServerConfig) HasAllocator() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeAllocator {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.AdminEndpoint != "" {
		addField("Admin Endpoint", c.AdminEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasAllocator() {
		addSection("Sequences")
		if c.Sequence.UsesNacos() {
			addField("Nacos Servers", strings.Join(c.Sequence.Nacos.ServerAddrs, ","))
			addField("Nacos Data ID", c.Sequence.Nacos.DataID)
			addField("Nacos Group", c.Sequence.Nacos.Group)
		} else {
			addField("Config File", c.Sequence.ConfigFile)
		}
		addField("Lower Case Names", fmt.Sprintf("%t", c.Sequence.LowerCaseNames))
		addField("Wait Timeout", c.Sequence.WaitTimeout.String())
		addField("Refill Timeout", c.Sequence.RefillTimeout.String())
		addField("Backend Conns", strconv.Itoa(c.Sequence.BackendConns))
		for _, t := range c.Sequence.Targets {
			target := redactURL(t.URL)
			if t.ReadOnly {
				target += " (read-only)"
			}
			addField("Target "+t.Name, target)
		}
	}

	if c.HasRemoteShard() {
		// Node Identity
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		// RAFT parameters
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Check Quorum", fmt.Sprintf("%t", true))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		// Storage
		addSection("Storage")
		addField("Data Directory", c.DataDir)

		addSection("Cluster")
		sb.WriteString("  Initial Cluster Members:\n")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	} else if c.DataDir != "" {
		addSection("Storage")
		addField("Data Directory", c.DataDir)
	}
	return sb.String()
}

// redactURL hides the password of a target url
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	userInfo := raw[scheme+3 : at]
	if colon := strings.Index(userInfo, ":"); colon >= 0 {
		return raw[:scheme+3] + userInfo[:colon] + ":xxxxx" + raw[at:]
	}
	return raw
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
