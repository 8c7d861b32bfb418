package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	cfg "branchlog/config"
	"branchlog/consensus"
	"branchlog/libs/metric"
	"branchlog/rpc"
	"branchlog/state"
	"branchlog/store"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
)

type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node is one process of the replicated log: consensus state, p2p switch,
// rpc server and metrics endpoint.
type Node struct {
	service.BaseService

	// config
	config *cfg.Config

	// network
	transport *p2p.MultiplexTransport
	sw        *p2p.Switch // p2p connections
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey // our node privkey

	// services
	consensusState   *consensus.ConsensusState
	consensusReactor *consensus.Reactor
	metricSet        *metric.MetricSet

	rpcListeners  []net.Listener
	prometheusSrv *http.Server
}

type Option func(*Node)

func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load or gen node key %s", config.NodeKeyFile())
	}

	return NewNode(config, nodeKey, logger)
}

func createTransport(
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
) *p2p.MultiplexTransport {
	var (
		mConnConfig = conn.DefaultMConnConfig()
		transport   = p2p.NewMultiplexTransport(nodeInfo, *nodeKey, mConnConfig)
	)
	return transport
}

func createSwitch(config *cfg.Config,
	transport p2p.Transport,
	consensusReactor *consensus.Reactor,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger) *p2p.Switch {

	sw := p2p.NewSwitch(
		config.P2P,
		transport,
	)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("CONSENSUS", consensusReactor)

	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("P2P Node ID", "ID", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func createConsensus(config *cfg.Config, logger log.Logger) (*consensus.ConsensusState, error) {
	membership, err := config.Cluster.Membership()
	if err != nil {
		return nil, errors.Wrap(err, "invalid cluster")
	}
	if !membership.IsMajorityQuorum() {
		logger.Error("quorums do not intersect, committed entries may diverge", "membership", membership)
	}

	st, err := state.MakeGenesisState(membership, store.NewMemNodeStore(logger.With("module", "store")))
	if err != nil {
		return nil, err
	}

	csMetrics := consensus.NopMetrics()
	if config.Instrumentation.Prometheus {
		csMetrics = consensus.PrometheusMetrics(config.Instrumentation.Namespace,
			"process_id", strconv.FormatInt(config.Cluster.ProcessID, 10))
	}

	consensusState := consensus.NewConsensusState(st, nil, consensus.SetMetrics(csMetrics))
	consensusState.SetLogger(logger.With("module", "consensus"))
	return consensusState, nil
}

func NewNode(config *cfg.Config, nodeKey *p2p.NodeKey, logger log.Logger, options ...Option) (*Node, error) {
	if self, ok := config.Cluster.Self(); ok && self.NodeID != "" && p2p.ID(self.NodeID) != nodeKey.ID() {
		return nil, fmt.Errorf("node key %v does not match node_id %v of process %d",
			nodeKey.ID(), self.NodeID, config.Cluster.ProcessID)
	}

	consensusState, err := createConsensus(config, logger)
	if err != nil {
		return nil, err
	}

	consensusReactor := consensus.NewReactor(consensusState, config.Cluster.PeerBook())
	consensusReactor.SetLogger(logger.With("module", "consensus"))
	consensusState.SetTransport(consensusReactor)

	metricSet := metric.NewMetricSet()
	if err := metricSet.SetMetrics("consensus", consensusState.Metric()); err != nil {
		return nil, err
	}
	if err := metricSet.SetMetrics("p2p", consensusReactor.Traffic()); err != nil {
		return nil, err
	}

	p2pLogger := logger.With("module", "p2p")

	nodeInfo, err := makeNodeInfo(config, nodeKey)
	if err != nil {
		return nil, err
	}

	// Setup Transport.
	transport := createTransport(nodeInfo, nodeKey)

	// Setup Switch.
	sw := createSwitch(
		config, transport, consensusReactor, nodeInfo, nodeKey, p2pLogger,
	)

	node := &Node{
		config:           config,
		transport:        transport,
		sw:               sw,
		nodeInfo:         nodeInfo,
		nodeKey:          nodeKey,
		consensusState:   consensusState,
		consensusReactor: consensusReactor,
		metricSet:        metricSet,
	}

	node.BaseService = *service.NewBaseService(logger, "Node", node)
	for _, option := range options {
		option(node)
	}

	return node, nil
}

func (n *Node) Switch() *p2p.Switch {
	return n.sw
}

func (n *Node) NodeInfo() p2p.NodeInfo {
	return n.nodeInfo
}

func (n *Node) ConsensusState() *consensus.ConsensusState {
	return n.consensusState
}

func (n *Node) MetricSet() *metric.MetricSet {
	return n.metricSet
}

func (n *Node) OnStart() error {
	if n.config.Instrumentation.Prometheus && n.config.Instrumentation.PrometheusListenAddr != "" {
		n.prometheusSrv = n.startPrometheusServer(n.config.Instrumentation.PrometheusListenAddr)
	}

	// rpc 先于p2p启动
	listeners, err := n.startRPC()
	if err != nil {
		return err
	}
	n.rpcListeners = listeners

	// start the transport
	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err := n.transport.Listen(*addr); err != nil {
		return err
	}

	// start the Switch, which starts the reactor and consensus
	err = n.sw.Start()
	if err != nil {
		return err
	}

	peers := n.config.Cluster.PeerAddresses()
	n.Logger.Info("dial cluster members", "peers", peers)
	if err := n.sw.AddPersistentPeers(peers); err != nil {
		return fmt.Errorf("could not add persistent peers: %w", err)
	}
	err = n.sw.DialPeersAsync(peers)
	if err != nil {
		return fmt.Errorf("could not dial cluster members: %w", err)
	}

	return nil
}

func (n *Node) OnStop() {
	n.Logger.Info("Stopping Node")

	if err := n.sw.Stop(); err != nil {
		n.Logger.Error("Error closing switch", "err", err)
	}

	if err := n.transport.Close(); err != nil {
		n.Logger.Error("Error closing transport", "err", err)
	}

	for _, l := range n.rpcListeners {
		n.Logger.Info("Closing rpc listener", "listener", l)
		if err := l.Close(); err != nil {
			n.Logger.Error("Error closing listener", "listener", l, "err", err)
		}
	}

	if n.prometheusSrv != nil {
		if err := n.prometheusSrv.Shutdown(context.Background()); err != nil {
			// Error from closing listeners, or context timeout:
			n.Logger.Error("Prometheus HTTP server Shutdown", "err", err)
		}
	}
}

// ConfigureRPC makes sure RPC has all the objects it needs to operate.
func (n *Node) ConfigureRPC() {
	rpc.SetEnvironment(&rpc.Environment{
		Consensus: n.consensusState,
		MetricSet: n.metricSet,
		Logger:    n.Logger.With("module", "rpc"),
	})
}

func (n *Node) startRPC() ([]net.Listener, error) {
	n.ConfigureRPC()

	listenAddrs := splitAndTrimEmpty(n.config.RPC.ListenAddress, ",", " ")
	config := rpcserver.DefaultConfig()
	config.MaxBodyBytes = n.config.RPC.MaxBodyBytes
	config.MaxHeaderBytes = n.config.RPC.MaxHeaderBytes
	config.MaxOpenConnections = n.config.RPC.MaxOpenConnections

	listeners := make([]net.Listener, len(listenAddrs))
	for i, listenAddr := range listenAddrs {
		mux := http.NewServeMux()
		rpcLogger := n.Logger.With("module", "rpc-server")
		wmLogger := rpcLogger.With("protocol", "websocket")
		wm := rpcserver.NewWebsocketManager(rpc.Routes,
			rpcserver.ReadLimit(config.MaxBodyBytes),
		)
		wm.SetLogger(wmLogger)
		mux.HandleFunc("/websocket", wm.WebsocketHandler)
		rpcserver.RegisterRPCFuncs(mux, rpc.Routes, rpcLogger)

		listener, err := rpcserver.Listen(listenAddr, config)
		if err != nil {
			return nil, err
		}

		go func() {
			if err := rpcserver.Serve(listener, mux, rpcLogger, config); err != nil {
				n.Logger.Error("Error serving server", "err", err)
			}
		}()

		listeners[i] = listener
	}

	return listeners, nil
}

// startPrometheusServer starts a Prometheus HTTP server, listening for metrics
// collectors on addr.
func (n *Node) startPrometheusServer(addr string) *http.Server {
	srv := &http.Server{
		Addr: addr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: n.config.Instrumentation.MaxOpenConnections},
			),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			// Error starting or closing listener:
			n.Logger.Error("Prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	return srv
}
