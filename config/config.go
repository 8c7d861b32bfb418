package config

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"branchlog/types"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	cfg "github.com/tendermint/tendermint/config"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"
)

const (
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"

	DefaultLogLevel = "info"
)

var (
	// DefaultHomeDir is relative to $HOME.
	DefaultHomeDir = ".branchlog"

	ErrInvalidCluster = errors.New("invalid cluster config")
)

// Config is the top level configuration of a branchlog node.
type Config struct {
	cfg.BaseConfig `mapstructure:",squash"`

	RPC             *cfg.RPCConfig             `mapstructure:"rpc"`
	P2P             *cfg.P2PConfig             `mapstructure:"p2p"`
	Instrumentation *cfg.InstrumentationConfig `mapstructure:"instrumentation"`
	Cluster         *ClusterConfig             `mapstructure:"cluster"`
}

func DefaultConfig() *Config {
	base := cfg.DefaultBaseConfig()
	base.LogLevel = DefaultLogLevel
	return &Config{
		BaseConfig:      base,
		RPC:             cfg.DefaultRPCConfig(),
		P2P:             cfg.DefaultP2PConfig(),
		Instrumentation: cfg.DefaultInstrumentationConfig(),
		Cluster:         DefaultClusterConfig(),
	}
}

func TestConfig() *Config {
	return &Config{
		BaseConfig:      cfg.TestBaseConfig(),
		RPC:             cfg.TestRPCConfig(),
		P2P:             cfg.TestP2PConfig(),
		Instrumentation: cfg.TestInstrumentationConfig(),
		Cluster:         DefaultClusterConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (c *Config) SetRoot(root string) *Config {
	c.BaseConfig.RootDir = root
	c.RPC.RootDir = root
	c.P2P.RootDir = root
	return c
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.RootDir, defaultConfigDir, defaultConfigFileName)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (c *Config) ValidateBasic() error {
	if err := c.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := c.RPC.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [rpc] section")
	}
	if err := c.P2P.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [p2p] section")
	}
	if err := c.Instrumentation.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [instrumentation] section")
	}
	if err := c.Cluster.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [cluster] section")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ClusterConfig

// MemberConfig binds a process id to the p2p identity it runs under.
type MemberConfig struct {
	ID      int64  `mapstructure:"id" toml:"id"`
	NodeID  string `mapstructure:"node_id" toml:"node_id"`
	Address string `mapstructure:"address" toml:"address"`
}

// ClusterConfig is the static membership of the replicated log.
type ClusterConfig struct {
	ProcessID       int64          `mapstructure:"process_id" toml:"process_id"`
	BlockQuorumSize int            `mapstructure:"block_quorum_size" toml:"block_quorum_size"`
	StoreQuorumSize int            `mapstructure:"store_quorum_size" toml:"store_quorum_size"`
	Members         []MemberConfig `mapstructure:"members" toml:"members"`
}

// DefaultClusterConfig is a single process cluster.
func DefaultClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		ProcessID:       1,
		BlockQuorumSize: 1,
		StoreQuorumSize: 1,
		Members:         []MemberConfig{{ID: 1}},
	}
}

func (cc *ClusterConfig) Membership() (*types.Membership, error) {
	members := make([]types.ProcessID, 0, len(cc.Members))
	for _, m := range cc.Members {
		members = append(members, types.ProcessID(m.ID))
	}
	return types.NewMembership(types.ProcessID(cc.ProcessID), members, cc.BlockQuorumSize, cc.StoreQuorumSize)
}

// Self returns the entry of this process.
func (cc *ClusterConfig) Self() (MemberConfig, bool) {
	for _, m := range cc.Members {
		if m.ID == cc.ProcessID {
			return m, true
		}
	}
	return MemberConfig{}, false
}

// PeerBook maps every other member to its p2p node id.
func (cc *ClusterConfig) PeerBook() map[types.ProcessID]p2p.ID {
	book := make(map[types.ProcessID]p2p.ID, len(cc.Members))
	for _, m := range cc.Members {
		if m.ID == cc.ProcessID {
			continue
		}
		book[types.ProcessID(m.ID)] = p2p.ID(m.NodeID)
	}
	return book
}

// PeerAddresses are the id@host:port strings the switch dials.
func (cc *ClusterConfig) PeerAddresses() []string {
	addrs := make([]string, 0, len(cc.Members))
	for _, m := range cc.Members {
		if m.ID == cc.ProcessID || m.Address == "" {
			continue
		}
		addrs = append(addrs, p2p.IDAddressString(p2p.ID(m.NodeID), m.Address))
	}
	return addrs
}

func (cc *ClusterConfig) ValidateBasic() error {
	if _, err := cc.Membership(); err != nil {
		return err
	}
	for _, m := range cc.Members {
		if m.ID == cc.ProcessID {
			continue
		}
		if m.NodeID == "" {
			return errors.Wrapf(ErrInvalidCluster, "member %d has no node_id", m.ID)
		}
		if m.Address == "" {
			return errors.Wrapf(ErrInvalidCluster, "member %d has no address", m.ID)
		}
	}
	return nil
}

//-----------------------------------------------------------------------------
// Config file

// fileConfig is the subset of Config written to config.toml. Keys match the
// mapstructure tags viper reads them back through.
type fileConfig struct {
	Moniker     string `toml:"moniker"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	NodeKeyFile string `toml:"node_key_file"`

	RPC struct {
		ListenAddress string `toml:"laddr"`
	} `toml:"rpc"`

	P2P struct {
		ListenAddress    string `toml:"laddr"`
		ExternalAddress  string `toml:"external_address"`
		AllowDuplicateIP bool   `toml:"allow_duplicate_ip"`
		AddrBookStrict   bool   `toml:"addr_book_strict"`
	} `toml:"p2p"`

	Instrumentation struct {
		Prometheus           bool   `toml:"prometheus"`
		PrometheusListenAddr string `toml:"prometheus_listen_addr"`
		Namespace            string `toml:"namespace"`
	} `toml:"instrumentation"`

	Cluster *ClusterConfig `toml:"cluster"`
}

func toFileConfig(c *Config) *fileConfig {
	fc := &fileConfig{
		Moniker:     c.Moniker,
		LogLevel:    c.LogLevel,
		LogFormat:   c.LogFormat,
		NodeKeyFile: c.NodeKey,
		Cluster:     c.Cluster,
	}
	fc.RPC.ListenAddress = c.RPC.ListenAddress
	fc.P2P.ListenAddress = c.P2P.ListenAddress
	fc.P2P.ExternalAddress = c.P2P.ExternalAddress
	fc.P2P.AllowDuplicateIP = c.P2P.AllowDuplicateIP
	fc.P2P.AddrBookStrict = c.P2P.AddrBookStrict
	fc.Instrumentation.Prometheus = c.Instrumentation.Prometheus
	fc.Instrumentation.PrometheusListenAddr = c.Instrumentation.PrometheusListenAddr
	fc.Instrumentation.Namespace = c.Instrumentation.Namespace
	return fc
}

// WriteConfigFile renders c as TOML at path.
func WriteConfigFile(path string, c *Config) error {
	var buffer bytes.Buffer
	buffer.WriteString("# branchlog node configuration\n\n")
	if err := toml.NewEncoder(&buffer).Encode(toFileConfig(c)); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return ioutil.WriteFile(path, buffer.Bytes(), 0644)
}

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and writes c as the config file if there is none.
func EnsureRoot(rootDir string, c *Config) error {
	for _, dir := range []string{rootDir, filepath.Join(rootDir, defaultConfigDir), filepath.Join(rootDir, defaultDataDir)} {
		if err := tmos.EnsureDir(dir, cfg.DefaultDirPerm); err != nil {
			return errors.Wrap(err, "ensure dir")
		}
	}

	configFilePath := filepath.Join(rootDir, defaultConfigDir, defaultConfigFileName)
	if tmos.FileExists(configFilePath) {
		return nil
	}
	if err := WriteConfigFile(configFilePath, c); err != nil {
		return fmt.Errorf("write config file %s: %w", configFilePath, err)
	}
	return nil
}
