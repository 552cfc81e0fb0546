package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/yanqingluo/dble/lib/backend"
	"github.com/yanqingluo/dble/lib/seqconf"
	"github.com/yanqingluo/dble/lib/sequence"
	"github.com/yanqingluo/dble/lib/store"
	"github.com/yanqingluo/dble/lib/store/dstore"
	"github.com/yanqingluo/dble/lib/store/lstore"
	"github.com/yanqingluo/dble/lib/store/pstore"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/serializer"
	"github.com/yanqingluo/dble/rpc/transport"
)

var Logger = logger.GetLogger("rpc")

// setupTimeout bounds connecting to all backend targets on start
const setupTimeout = 30 * time.Second

// serverShard is a struct that represents a shard in the RPC server
// It contains the adapter that handles requests for the shard
type serverShard struct {
	Type    common.ServerShardType
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) IRPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		tables:     map[uint64]store.IStore{},
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	tables   map[uint64]store.IStore // table shards by ID, only written by init
	closers  []io.Closer             // tables owned by this server
	nodeHost *dragonboat.NodeHost

	pool      *backend.Pool
	allocator sequence.IAllocator
	source    seqconf.ISource
	admin     *http.Server

	closeOnce sync.Once
	closeErr  error
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IRPCServer)
// --------------------------------------------------------------------------

// Serve starts the RPC server
// This function will also initialize the shards, the allocator and the admin API and then
// start the transport layer
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		_ = s.Close()
		return err
	}
	if err := s.startAdmin(); err != nil {
		_ = s.Close()
		return err
	}
	return s.transport.Listen(s.config.Transport)
}

func (s *rpcServer) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transport: %w", err))
		}
		if s.admin != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.admin.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("admin: %w", err))
			}
			cancel()
		}
		if s.source != nil {
			if err := s.source.Close(); err != nil {
				errs = append(errs, fmt.Errorf("sequence source: %w", err))
			}
		}
		if s.allocator != nil {
			_ = s.allocator.Close()
		}
		if s.pool != nil {
			if err := s.pool.Close(); err != nil {
				errs = append(errs, fmt.Errorf("backend pool: %w", err))
			}
		}
		for _, c := range s.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("table: %w", err))
			}
		}
		if s.nodeHost != nil {
			s.nodeHost.Close()
		}
		s.closeErr = errors.Join(errs...)
		Logger.Infof("RPC server stopped")
	})
	return s.closeErr
}

// ServeUntilSignal runs Serve and closes the server on SIGINT or SIGTERM
func ServeUntilSignal(s IRPCServer) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			Logger.Infof("Received %s, shutting down", sig)
			_ = s.Close()
		case <-done:
		}
	}()

	err := s.Serve()
	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		shard, ok := s.shards.Load(shardId)
		if !ok {
			respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			respMsg = shard.Adapter.Handle(&msg)
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}

func (s *rpcServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	// Only create the NodeHost if we have raft replicated tables
	if s.config.HasRemoteShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	/*
		Note: A single RPC Server can have any number of table shards and allocator shards.
		Tables are created first, so that allocator targets of the form local:<shard> can
		reference them. All allocator shards share one allocator.
	*/

	for _, shardConfig := range s.config.Shards {
		if !shardConfig.Type.IsTable() {
			continue
		}
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			return fmt.Errorf("duplicate shard %d", shardConfig.ShardID)
		}
		table, err := s.createTable(shardConfig)
		if err != nil {
			return err
		}
		s.tables[shardConfig.ShardID] = table
		s.shards.Store(shardConfig.ShardID, serverShard{
			Type:    shardConfig.Type,
			Adapter: NewTableServerAdapter(table),
		})
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	if s.config.HasAllocator() {
		if err := s.createAllocator(); err != nil {
			return err
		}
		adapter := NewAllocatorServerAdapter(s.allocator, s.applyMapping)
		for _, shardConfig := range s.config.Shards {
			if shardConfig.Type != common.ShardTypeAllocator {
				continue
			}
			if _, exists := s.shards.Load(shardConfig.ShardID); exists {
				return fmt.Errorf("duplicate shard %d", shardConfig.ShardID)
			}
			s.shards.Store(shardConfig.ShardID, serverShard{Type: shardConfig.Type, Adapter: adapter})
			Logger.Infof("created allocator for shard %d", shardConfig.ShardID)
		}
	}

	Logger.Infof("dseq setup completed successfully")

	s.registerTransportHandler()
	return nil
}

// createTable creates the sequence table of a table shard
func (s *rpcServer) createTable(shardConfig common.ServerShard) (store.IStore, error) {
	switch shardConfig.Type {
	case common.ShardTypeLocalTable:
		table := lstore.NewLocalStore()
		s.closers = append(s.closers, table)
		return table, nil

	case common.ShardTypePebbleTable:
		if s.config.DataDir == "" {
			return nil, fmt.Errorf("shard %d: a data directory is required for %s", shardConfig.ShardID, shardConfig.Type)
		}
		path := filepath.Join(s.config.DataDir, fmt.Sprintf("shard-%d", shardConfig.ShardID))
		table, err := pstore.NewPebbleStore(path)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", shardConfig.ShardID, err)
		}
		s.closers = append(s.closers, table)
		return table, nil

	case common.ShardTypeRemoteTable:
		if s.nodeHost == nil {
			return nil, fmt.Errorf("node host is nil, cannot create replicated table")
		}
		factory := dstore.CreateStateMachineFactory(func() store.ISnapshotStore { return lstore.NewLocalStore() })
		if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, factory, s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
			return nil, fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
		}
		timeout := time.Duration(s.config.TimeoutSecond) * time.Second
		return dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout), nil

	default:
		return nil, fmt.Errorf("invalid table shard type: %s", shardConfig.Type)
	}
}

// createAllocator connects the backend targets, creates the allocator and loads the
// sequence configuration
func (s *rpcServer) createAllocator() error {
	conf := s.config.Sequence
	defaults := sequence.DefaultConfig()
	if conf.WaitTimeout <= 0 {
		conf.WaitTimeout = defaults.WaitTimeout
	}
	if conf.RefillTimeout <= 0 {
		conf.RefillTimeout = defaults.RefillTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	pool, err := backend.NewPool(backend.PoolConfig{
		MaxConnsPerTarget: conf.BackendConns,
		QueryTimeout:      conf.RefillTimeout,
	})
	if err != nil {
		return err
	}
	s.pool = pool

	for _, target := range conf.Targets {
		exec, err := s.openExecutor(ctx, target)
		if err != nil {
			return err
		}
		if err := pool.Register(backend.Target{Name: target.Name, Executor: exec, ReadOnly: target.ReadOnly}); err != nil {
			_ = exec.Close()
			return err
		}
		Logger.Infof("registered backend target %s", target.Name)
	}

	s.allocator = sequence.NewAllocator(pool, sequence.Config{
		WaitTimeout:   conf.WaitTimeout,
		RefillTimeout: conf.RefillTimeout,
	})

	if conf.UsesNacos() {
		s.source, err = seqconf.NewNacosSource(conf.Nacos, conf.LowerCaseNames)
		if err != nil {
			return err
		}
	} else {
		s.source = seqconf.NewFileSource(conf.ConfigFile, conf.LowerCaseNames)
	}

	mapping, err := s.source.Load()
	if err != nil {
		return fmt.Errorf("failed to load sequence configuration: %w", err)
	}
	s.applyMapping(mapping)

	if err := s.source.Watch(s.applyMapping); err != nil {
		return fmt.Errorf("failed to watch sequence configuration: %w", err)
	}
	return nil
}

// applyMapping passes a new sequence configuration to the allocator. Sequences that reference
// unknown targets are kept, their refills fail until the target exists.
func (s *rpcServer) applyMapping(mapping map[string]string) {
	known := map[string]bool{}
	if s.pool != nil {
		for _, name := range s.pool.Targets() {
			known[name] = true
		}
	}
	for name, target := range mapping {
		if !known[target] {
			Logger.Warningf("sequence %s references unknown target %s", name, target)
		}
	}
	s.allocator.Reload(mapping)
	Logger.Infof("loaded %d sequences", len(mapping))
}
