package util

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/serializer"
	"github.com/yanqingluo/dble/rpc/transport"
	"github.com/yanqingluo/dble/rpc/transport/http"
	"github.com/yanqingluo/dble/rpc/transport/tcp"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DSEQ_TIMEOUT)
	EnvPrefix = "dseq"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the dseq server. Multiple endpoints can be specified as a comma-separated list, requests are spread round robin"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval in seconds, 0 disables keepalive (tcp only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time in seconds, negative keeps the OS default (tcp only)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              SplitList(viper.GetString("transport-endpoints")),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientTransport creates a client transport based on configuration
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates a server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return viper.GetUint64("shard")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Parsing Helpers
// --------------------------------------------------------------------------

// SplitList splits a comma separated list and drops empty entries
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ReplicaID converts a replica name to a raft replica ID. Numeric names are used as they
// are, other names are hashed with FNV-1a. Raft replica IDs must not be 0.
func ReplicaID(name string) (uint64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("empty replica id")
	}
	if id, err := strconv.ParseUint(name, 10, 64); err == nil {
		if id == 0 {
			return 0, fmt.Errorf("replica id must not be 0")
		}
		return id, nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	id := h.Sum64()
	if id == 0 {
		id = 1
	}
	return id, nil
}

// ParseShards parses a list of the form 100=table(lstore),1=allocator
func ParseShards(s string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	seen := map[uint64]bool{}
	for _, entry := range SplitList(s) {
		id, typ, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", entry)
		}
		shardID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", id, err)
		}
		if seen[shardID] {
			return nil, fmt.Errorf("duplicate shard ID %d", shardID)
		}
		seen[shardID] = true
		shardType, err := common.ParseShardType(typ)
		if err != nil {
			return nil, err
		}
		shards = append(shards, common.ServerShard{ShardID: shardID, Type: shardType})
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return shards, nil
}

// ParseTargets parses a list of the form dn1=local:100,dn2=postgres://...
// A trailing "!ro" marks a target read-only (dn3=redis://host!ro). A comma separated host
// list inside a url (mongodb://a:27017,b:27017/db) stays part of that url.
func ParseTargets(s string) ([]common.BackendTarget, error) {
	var entries []string
	for _, part := range SplitList(s) {
		name, _, ok := strings.Cut(part, "=")
		if (!ok || !isTargetName(name)) && len(entries) > 0 {
			entries[len(entries)-1] += "," + part
			continue
		}
		entries = append(entries, part)
	}

	var targets []common.BackendTarget
	seen := map[string]bool{}
	for _, entry := range entries {
		name, url, ok := strings.Cut(entry, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || !isTargetName(name) || url == "" {
			return nil, fmt.Errorf("invalid target format: %s (expected NAME=URL)", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate target %s", name)
		}
		seen[name] = true
		readOnly := false
		if strings.HasSuffix(url, "!ro") {
			url, readOnly = strings.TrimSuffix(url, "!ro"), true
		}
		targets = append(targets, common.BackendTarget{Name: name, URL: url, ReadOnly: readOnly})
	}
	return targets, nil
}

// isTargetName reports whether s is a valid target name (letters, digits, '-', '_' and '.')
func isTargetName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// ParseClusterMembers parses a list of the form node-1=localhost:63001,node-2=localhost:63002
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := map[uint64]string{}
	for _, entry := range SplitList(s) {
		name, addr, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(addr) == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", entry)
		}
		id, err := ReplicaID(name)
		if err != nil {
			return nil, err
		}
		if _, exists := members[id]; exists {
			return nil, fmt.Errorf("duplicate cluster member %s", name)
		}
		members[id] = strings.TrimSpace(addr)
	}
	return members, nil
}
