package seqconf

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// NacosConfig holds the settings to read the sequence mapping from a Nacos config server.
type NacosConfig struct {
	ServerAddrs []string // host:port of every nacos server
	NamespaceID string
	DataID      string
	Group       string
	TimeoutMs   uint64
	Username    string
	Password    string
	CacheDir    string
	LogDir      string
	LogLevel    string
}

// configClient is the part of the nacos config client used by the source.
type configClient interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
	CancelListenConfig(param vo.ConfigParam) error
	CloseClient()
}

type nacosSource struct {
	client configClient
	param  vo.ConfigParam
	lower  bool

	mu       sync.Mutex
	watching bool
	closed   bool
}

// NewNacosSource connects to the nacos servers. The data id holds the mapping in properties format.
func NewNacosSource(config NacosConfig, lowerCaseKeys bool) (ISource, error) {
	if config.DataID == "" {
		return nil, errors.New("nacos data id must not be empty")
	}
	if len(config.ServerAddrs) == 0 {
		return nil, errors.New("no nacos server configured")
	}

	serverConfigs := make([]constant.ServerConfig, 0, len(config.ServerAddrs))
	for _, addr := range config.ServerAddrs {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid nacos server %q: %w", addr, err)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid nacos server port %q: %w", addr, err)
		}
		serverConfigs = append(serverConfigs, *constant.NewServerConfig(host, port))
	}

	timeout := config.TimeoutMs
	if timeout == 0 {
		timeout = 5000
	}
	logLevel := config.LogLevel
	if logLevel == "" {
		logLevel = "warn"
	}
	opts := []constant.ClientOption{
		constant.WithNamespaceId(config.NamespaceID),
		constant.WithTimeoutMs(timeout),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel(logLevel),
	}
	if config.CacheDir != "" {
		opts = append(opts, constant.WithCacheDir(config.CacheDir))
	}
	if config.LogDir != "" {
		opts = append(opts, constant.WithLogDir(config.LogDir))
	}
	if config.Username != "" {
		opts = append(opts, constant.WithUsername(config.Username), constant.WithPassword(config.Password))
	}

	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  constant.NewClientConfig(opts...),
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos config client: %w", err)
	}
	return newNacosSource(client, config, lowerCaseKeys), nil
}

func newNacosSource(client configClient, config NacosConfig, lowerCaseKeys bool) *nacosSource {
	group := config.Group
	if group == "" {
		group = "DEFAULT_GROUP"
	}
	return &nacosSource{
		client: client,
		param:  vo.ConfigParam{DataId: config.DataID, Group: group},
		lower:  lowerCaseKeys,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see seqconf.ISource)
// --------------------------------------------------------------------------

func (s *nacosSource) Load() (map[string]string, error) {
	content, err := s.client.GetConfig(s.param)
	if err != nil {
		return nil, fmt.Errorf("failed to get nacos config %s/%s: %w", s.param.Group, s.param.DataId, err)
	}
	return ParseProperties(content, s.lower)
}

func (s *nacosSource) Watch(onChange func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("nacos source is closed")
	}
	if s.watching {
		return errors.New("nacos source is already watched")
	}

	param := s.param
	param.OnChange = func(_, group, dataID, data string) {
		mapping, err := ParseProperties(data, s.lower)
		if err != nil {
			Logger.Warningf("ignoring change of nacos config %s/%s: %v", group, dataID, err)
			return
		}
		Logger.Infof("nacos config %s/%s changed, %d sequences", group, dataID, len(mapping))
		onChange(mapping)
	}
	if err := s.client.ListenConfig(param); err != nil {
		return fmt.Errorf("failed to listen on nacos config %s/%s: %w", s.param.Group, s.param.DataId, err)
	}
	s.watching = true
	return nil
}

func (s *nacosSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.watching {
		err = s.client.CancelListenConfig(s.param)
	}
	s.client.CloseClient()
	return err
}
