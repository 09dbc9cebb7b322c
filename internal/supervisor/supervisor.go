package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/LiXi-storage/clownfish/internal/agent"
	"github.com/LiXi-storage/clownfish/internal/config"
	"github.com/LiXi-storage/clownfish/internal/coordination"
	"github.com/LiXi-storage/clownfish/internal/logging"
	"github.com/LiXi-storage/clownfish/internal/lustre"
	"github.com/LiXi-storage/clownfish/internal/mgrcmd"
)

// Supervisor owns every supervisory task of the daemon: one agent per local
// service instance, one agent per neighbour host, and the periodic version
// check. It builds the whole set at startup from the cluster topology and
// tears everything down on SIGINT/SIGTERM.
type Supervisor struct {
	cfg      *config.Config
	logger   *logging.Logger
	runner   *mgrcmd.Runner
	coord    *coordination.Client
	hostname string
	agents   []*agent.Agent
}

// New loads the topology through the management command and builds all
// agents. Errors here are fatal: the process must not come up with a
// topology it cannot serve.
func New(cfg *config.Config, logger *logging.Logger) (*Supervisor, error) {
	runner := mgrcmd.NewRunner(cfg.Agent.MgrCommand)

	topo, err := lustre.Load(runner)
	if err != nil {
		return nil, err
	}

	hostname := cfg.Agent.LocalHostname
	if hostname == "" {
		hostname, err = os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to get local hostname: %w", err)
		}
	}

	coord, err := coordination.NewClient(coordination.Options{
		Endpoints:     cfg.Etcd.Endpoints,
		DialTimeout:   cfg.Etcd.DialTimeout,
		Username:      cfg.Etcd.Username,
		Password:      cfg.Etcd.Password,
		CertFile:      cfg.Etcd.CertFile,
		KeyFile:       cfg.Etcd.KeyFile,
		TrustedCAFile: cfg.Etcd.TrustedCAFile,
	})
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		cfg:      cfg,
		logger:   logger,
		runner:   runner,
		coord:    coord,
		hostname: hostname,
	}

	if err := s.buildAgents(topo); err != nil {
		_ = coord.Close()
		return nil, err
	}

	return s, nil
}

// buildAgents creates the service agents for every instance placed on the
// local host and the host agents for every neighbour on the monitor ring.
func (s *Supervisor) buildAgents(topo *lustre.Topology) error {
	namespace := s.cfg.Agent.Namespace

	for _, instance := range topo.LocalInstances(s.hostname) {
		target := agent.NewServiceTarget(namespace, instance.Service.Name)
		s.agents = append(s.agents, agent.New(target, s.coord, s.runner, s.logger))
	}

	neighbours, err := lustre.NeighbourHosts(topo, s.hostname, s.cfg.Agent.WatchFanout)
	if err != nil {
		return err
	}

	for _, host := range neighbours {
		target := agent.NewHostTarget(namespace, host.Hostname)
		s.agents = append(s.agents, agent.New(target, s.coord, s.runner, s.logger))
	}

	return nil
}

// Agents returns the supervised agents.
func (s *Supervisor) Agents() []*agent.Agent {
	return s.agents
}

// Run starts every task and blocks until a termination signal has been
// handled and all tasks have drained.
func (s *Supervisor) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waitGroup sync.WaitGroup

	waitGroup.Add(1)
	go s.versionCheck(ctx, &waitGroup)

	for _, a := range s.agents {
		target := a.Target()
		s.logger.Info("starting agent for "+target.Kind(),
			target.LogKey(), target.Name())
		waitGroup.Add(1)
		go a.Run(ctx, &waitGroup)
	}

	s.waitForSignal()

	cancel()
	waitGroup.Wait()

	return s.coord.Close()
}

// waitForSignal blocks until SIGINT or SIGTERM. Every other signal is
// observed and ignored.
func (s *Supervisor) waitForSignal() {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel)
	defer signal.Stop(signalChannel)

	for sig := range signalChannel {
		if sig == syscall.SIGINT || sig == syscall.SIGTERM {
			s.logger.Warn("quitting because of signal", "signal", sig.String())
			return
		}
		s.logger.Debug("ignoring signal", "signal", sig.String())
	}
}
