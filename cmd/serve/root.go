package serve

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/yanqingluo/dble/cmd/util"
	"github.com/yanqingluo/dble/lib/seqconf"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/server"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the dseq server",
		Long: `Start the dseq server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSEQ_<flag> (e.g. DSEQ_TIMEOUT=15)

Example (one node serving a table and the allocator that reads from it):

  dseq serve --shards "100=table(lstore),1=allocator" --targets "dn1=local:100" \
    --sequence-config sequence_db_conf.properties`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := ServeCmd.PersistentFlags()

	// shards and transport
	key := "shards"
	flags.String(key, "100=table(lstore),1=allocator", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: table(lstore), table(pstore), table(dstore), allocator"))

	key = "endpoint"
	flags.String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the RPC server will listen"))

	key = "admin-endpoint"
	flags.String(key, "", cmdUtil.WrapString("Optional address of the admin HTTP API (metrics, sequences, errors, reload)"))

	key = "workers-per-conn"
	flags.Int(key, 64, cmdUtil.WrapString("Requests processed concurrently per connection (tcp only)"))

	key = "transport-tcp-nodelay"
	flags.Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	flags.Int(key, 30, cmdUtil.WrapString("The keepalive interval in seconds, 0 disables keepalive (tcp only)"))

	key = "transport-tcp-linger"
	flags.Int(key, -1, cmdUtil.WrapString("The linger time in seconds, negative keeps the OS default (tcp only)"))

	key = "timeout"
	flags.Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for raft operations and remote tables"))

	key = "log-level"
	flags.String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	// sequences
	key = "targets"
	flags.String(key, "dn1=local:100", cmdUtil.WrapString("Comma-separated list of backend targets of the allocator. Format: NAME=URL where URL is local:<shard>, postgres://..., redis://..., mongodb://.../<db> or dseq://host:port/<shard>. Append !ro to mark a target read-only"))

	key = "sequence-config"
	flags.String(key, seqconf.DefaultFileName, cmdUtil.WrapString("Properties file mapping sequence names to targets (name=target). Changes are picked up while running"))

	key = "lower-case-names"
	flags.Bool(key, false, cmdUtil.WrapString("Lower-case all sequence names of the configuration"))

	key = "wait-timeout"
	flags.Duration(key, 10*time.Second, cmdUtil.WrapString("How long a caller waits for a segment before failing"))

	key = "refill-timeout"
	flags.Duration(key, 30*time.Second, cmdUtil.WrapString("How long a single refill may take before it is abandoned"))

	key = "backend-conns"
	flags.Int(key, 16, cmdUtil.WrapString("Maximum concurrent queries per backend target"))

	key = "pg-install-schema"
	flags.Bool(key, false, cmdUtil.WrapString("Create the sequence table and the dseq_nextval function on postgres targets"))

	// nacos
	key = "nacos-servers"
	flags.String(key, "", cmdUtil.WrapString("Comma-separated list of Nacos servers (host:port). If set together with --nacos-data-id the sequence configuration is read from Nacos instead of the file"))

	key = "nacos-namespace"
	flags.String(key, "", cmdUtil.WrapString("Nacos namespace ID"))

	key = "nacos-data-id"
	flags.String(key, "", cmdUtil.WrapString("Nacos data ID of the sequence configuration"))

	key = "nacos-group"
	flags.String(key, "DEFAULT_GROUP", cmdUtil.WrapString("Nacos group of the sequence configuration"))

	key = "nacos-username"
	flags.String(key, "", cmdUtil.WrapString("Nacos user name"))

	key = "nacos-password"
	flags.String(key, "", cmdUtil.WrapString("Nacos password"))

	key = "nacos-cache-dir"
	flags.String(key, "", cmdUtil.WrapString("Directory of the Nacos client cache"))

	key = "nacos-log-dir"
	flags.String(key, "", cmdUtil.WrapString("Directory of the Nacos client logs"))

	// raft and storage
	key = "rtt-millisecond"
	flags.Int(key, 100, cmdUtil.WrapString("(table(dstore)) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. Other raft parameters (ElectionRTT, HeartbeatRTT) are derived from this value"))

	key = "snapshot-entries"
	flags.Int(key, 1000, cmdUtil.WrapString("(table(dstore)) SnapshotEntries defines how often the state machine is snapshotted, in applied Raft log entries. 0 disables automatic snapshots (not recommended)"))

	key = "compaction-overhead"
	flags.Int(key, 500, cmdUtil.WrapString("(table(dstore)) CompactionOverhead defines the number of log entries kept after a snapshot"))

	key = "data-dir"
	flags.String(key, "data", cmdUtil.WrapString("Directory for raft data (table(dstore)) and pebble tables (table(pstore))"))

	key = "replica-id"
	flags.String(key, "", cmdUtil.WrapString("(table(dstore)) ReplicaID is the unique identifier of this node (e.g. 'node-1' or '1')"))

	key = "cluster-members"
	flags.String(key, "", cmdUtil.WrapString("(table(dstore)) ClusterMembers is a comma-separated list of node addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	config, err := readConfig()
	if err != nil {
		return err
	}
	*serveCmdConfig = *config
	return nil
}

// readConfig builds the server configuration from viper
func readConfig() (*common.ServerConfig, error) {
	config := &common.ServerConfig{}

	shards, err := cmdUtil.ParseShards(viper.GetString("shards"))
	if err != nil {
		return nil, err
	}
	config.Shards = shards

	config.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	config.SnapshotEntries = viper.GetUint64("snapshot-entries")
	config.CompactionOverhead = viper.GetUint64("compaction-overhead")
	config.DataDir = viper.GetString("data-dir")
	config.TimeoutSecond = viper.GetInt64("timeout")
	config.AdminEndpoint = viper.GetString("admin-endpoint")
	config.LogLevel = viper.GetString("log-level")
	config.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	if _, err := common.ParseLogLevel(config.LogLevel); err != nil {
		return nil, err
	}

	if config.HasAllocator() {
		targets, err := cmdUtil.ParseTargets(viper.GetString("targets"))
		if err != nil {
			return nil, err
		}
		config.Sequence = common.SequenceConfig{
			Targets:        targets,
			ConfigFile:     viper.GetString("sequence-config"),
			LowerCaseNames: viper.GetBool("lower-case-names"),
			WaitTimeout:    viper.GetDuration("wait-timeout"),
			RefillTimeout:  viper.GetDuration("refill-timeout"),
			BackendConns:   viper.GetInt("backend-conns"),
			InstallSchema:  viper.GetBool("pg-install-schema"),
			Nacos: seqconf.NacosConfig{
				ServerAddrs: cmdUtil.SplitList(viper.GetString("nacos-servers")),
				NamespaceID: viper.GetString("nacos-namespace"),
				DataID:      viper.GetString("nacos-data-id"),
				Group:       viper.GetString("nacos-group"),
				Username:    viper.GetString("nacos-username"),
				Password:    viper.GetString("nacos-password"),
				CacheDir:    viper.GetString("nacos-cache-dir"),
				LogDir:      viper.GetString("nacos-log-dir"),
			},
		}
		if config.Sequence.UsesNacos() && len(config.Sequence.Nacos.ServerAddrs) == 0 {
			return nil, fmt.Errorf("--nacos-data-id requires --nacos-servers")
		}
	}

	if !config.HasRemoteShard() {
		return config, nil
	}

	// raft settings are required for replicated tables only
	replica := viper.GetString("replica-id")
	if replica == "" {
		return nil, fmt.Errorf("ReplicaId is required for table(dstore) shards")
	}
	if config.ReplicaID, err = cmdUtil.ReplicaID(replica); err != nil {
		return nil, err
	}
	members := viper.GetString("cluster-members")
	if members == "" {
		return nil, fmt.Errorf("ClusterMembers is required for table(dstore) shards")
	}
	if config.ClusterMembers, err = cmdUtil.ParseClusterMembers(members); err != nil {
		return nil, err
	}
	if _, ok := config.ClusterMembers[config.ReplicaID]; !ok {
		return nil, fmt.Errorf("no address found for replica ID %s in cluster members", replica)
	}
	return config, nil
}

// run starts the dseq server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	return server.ServeUntilSignal(server.NewRPCServer(*serveCmdConfig, t, s))
}

// initConfig reads in ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(cmdUtil.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
