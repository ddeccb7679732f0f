package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cforge/internal/buildjob"
	"cforge/internal/cluster"
	"cforge/internal/config"
	"cforge/internal/history"
	"cforge/internal/reconciler"
	"cforge/internal/server"
	"cforge/pkg/logging"
)

// Services holds the long-lived components of a running controller.
type Services struct {
	Config config.CForgeConfig

	// Registry collects reconciler, HTTP and process metrics.
	Registry *prometheus.Registry

	Cluster    cluster.Client
	Cloner     *reconciler.Cloner
	Reconciler *reconciler.CForgeReconciler
	Manager    *reconciler.Manager
	History    *history.Aggregator

	// Server is nil when the HTTP API is disabled.
	Server *server.Server
}

// InitializeServices builds every component from cfg.CForgeConfig.
func InitializeServices(cfg *Config) (*Services, error) {
	if cfg.CForgeConfig == nil {
		return nil, errors.New("configuration not loaded")
	}
	cforgeCfg := *cfg.CForgeConfig

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := reconciler.NewMetrics(registry)

	client := cfg.Cluster
	if client == nil {
		var err error
		if client, err = NewClusterClient(cforgeCfg); err != nil {
			return nil, err
		}
	}

	cloner := reconciler.NewCloner(client, metrics)
	cforgeReconciler := reconciler.NewCForgeReconciler(client, buildjob.TemplateFromConfig(cforgeCfg),
		reconciler.WithMetrics(metrics),
		reconciler.WithCloner(cloner),
	)

	manager := reconciler.NewManager(reconciler.ManagerConfig{
		Mode:             reconciler.WatchMode(cforgeCfg.Reconciler.Mode),
		FilesystemPath:   cforgeCfg.Reconciler.ManifestsPath,
		Namespace:        cforgeCfg.WatchNamespace,
		WorkerCount:      cforgeCfg.Reconciler.WorkerCount,
		MaxRetries:       cforgeCfg.Reconciler.MaxRetries,
		InitialBackoff:   cforgeCfg.Reconciler.InitialBackoff,
		MaxBackoff:       cforgeCfg.Reconciler.MaxBackoff,
		DebounceInterval: cforgeCfg.Reconciler.DebounceInterval,
		ReconcileTimeout: cforgeCfg.Reconciler.ReconcileTimeout,
		Detector:         cfg.Detector,
		Metrics:          metrics,
	})
	if err := manager.RegisterReconciler(cforgeReconciler); err != nil {
		return nil, fmt.Errorf("registering CForge reconciler: %w", err)
	}

	services := &Services{
		Config:     cforgeCfg,
		Registry:   registry,
		Cluster:    client,
		Cloner:     cloner,
		Reconciler: cforgeReconciler,
		Manager:    manager,
		History:    history.NewAggregator(cforgeCfg.ArtifactDir),
	}

	if cforgeCfg.Server.Enabled {
		services.Server = server.New(cforgeCfg.Server, server.Options{
			History:  services.History,
			Runner:   cloner,
			Registry: registry,
			Ready:    services.ready,
		})
	} else {
		logging.Info("Services", "HTTP API disabled")
	}

	logging.Info("Services", "Initialized: namespace=%s artifacts=%s mode=%s",
		cforgeCfg.Namespace, cforgeCfg.ArtifactDir, cforgeCfg.Reconciler.Mode)
	return services, nil
}

// NewClusterClient connects to the cluster from the kubeconfig or the
// in-cluster service account.
func NewClusterClient(cforgeCfg config.CForgeConfig) (cluster.Client, error) {
	restConfig, err := reconciler.GetRestConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get Kubernetes config: %w", err)
	}
	client, err := cluster.NewKubernetesClient(restConfig, cforgeCfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return client, nil
}

func (s *Services) ready() error {
	if !s.Manager.IsRunning() {
		return errors.New("reconcile manager is not running")
	}
	return nil
}
