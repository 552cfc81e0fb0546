package server

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yanqingluo/dble/lib/backend"
	"github.com/yanqingluo/dble/lib/backend/mongoexec"
	"github.com/yanqingluo/dble/lib/backend/pgexec"
	"github.com/yanqingluo/dble/lib/backend/redisexec"
	"github.com/yanqingluo/dble/lib/backend/storeexec"
	"github.com/yanqingluo/dble/rpc/client"
	"github.com/yanqingluo/dble/rpc/common"
	"github.com/yanqingluo/dble/rpc/serializer"
	"github.com/yanqingluo/dble/rpc/transport"
	"github.com/yanqingluo/dble/rpc/transport/http"
	"github.com/yanqingluo/dble/rpc/transport/tcp"
)

const defaultMongoDatabase = "dseq"

// openExecutor creates the executor for a backend target. The scheme of the url selects the
// backend:
//
//	local:<shard>                      table shard of this server
//	postgres://, postgresql://         postgres with the dseq_nextval function
//	redis://, rediss://                redis hashes
//	mongodb://, mongodb+srv://         mongodb, the database is the url path
//	dseq://host:port/<shard>?transport=tcp&serializer=binary
//	                                   table shard of another server
func (s *rpcServer) openExecutor(ctx context.Context, target common.BackendTarget) (backend.IExecutor, error) {
	raw := strings.TrimSpace(target.URL)
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, fmt.Errorf("target %s: missing scheme in %q", target.Name, raw)
	}

	switch strings.ToLower(scheme) {
	case "local":
		shardID, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("target %s: invalid shard %q: %v", target.Name, rest, err)
		}
		table, found := s.tables[shardID]
		if !found {
			return nil, fmt.Errorf("target %s: shard %d is not a table shard of this server", target.Name, shardID)
		}
		return storeexec.New(table), nil

	case "postgres", "postgresql":
		exec, err := pgexec.New(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Name, err)
		}
		if s.config.Sequence.InstallSchema && !target.ReadOnly {
			if err := exec.Install(ctx); err != nil {
				_ = exec.Close()
				return nil, fmt.Errorf("target %s: failed to install schema: %w", target.Name, err)
			}
		}
		return exec, nil

	case "redis", "rediss":
		exec, err := redisexec.New(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Name, err)
		}
		return exec, nil

	case "mongodb", "mongodb+srv":
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Name, err)
		}
		database := strings.Trim(u.Path, "/")
		if database == "" {
			database = defaultMongoDatabase
		}
		exec, err := mongoexec.New(ctx, raw, database)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Name, err)
		}
		return exec, nil

	case "dseq":
		remote, err := s.openRemoteTable(raw)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target.Name, err)
		}
		return storeexec.NewOwned(remote), nil

	default:
		return nil, fmt.Errorf("target %s: unsupported scheme %q", target.Name, scheme)
	}
}

// openRemoteTable connects to a table shard of another server
func (s *rpcServer) openRemoteTable(raw string) (client.IRPCStore, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	shardID, err := strconv.ParseUint(strings.Trim(u.Path, "/"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid shard in %q: %v", raw, err)
	}

	query := u.Query()
	t, err := clientTransport(query.Get("transport"))
	if err != nil {
		return nil, err
	}
	ser, err := serializerByName(query.Get("serializer"))
	if err != nil {
		return nil, err
	}

	timeout := int(s.config.TimeoutSecond)
	if timeout <= 0 {
		timeout = 5
	}
	return client.NewRPCStore(shardID, common.ClientConfig{
		TimeoutSecond: timeout,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{u.Host},
			RetryCount:             3,
			ConnectionsPerEndpoint: 1,
			TCPConf:                common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
	}, t, ser)
}

func clientTransport(name string) (transport.IRPCClientTransport, error) {
	switch name {
	case "", "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "http":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

func serializerByName(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "", "binary":
		return serializer.NewBinarySerializer(), nil
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}
