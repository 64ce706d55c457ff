package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	ctrlzap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/scalemesh/policy-server/internal/api"
	"github.com/scalemesh/policy-server/internal/command"
	"github.com/scalemesh/policy-server/internal/config"
	"github.com/scalemesh/policy-server/internal/coordination"
	"github.com/scalemesh/policy-server/internal/logger"
	"github.com/scalemesh/policy-server/internal/plugins"
	"github.com/scalemesh/policy-server/internal/store"
	"github.com/scalemesh/policy-server/internal/telemetry"
	"github.com/scalemesh/policy-server/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the policy configuration server",
	Long: `Start the HTTP server exposing the autoscaling policy API.

The server requires a configuration file (--config) that specifies:
- The coordination backend holding the policy document (ConfigMap or memory)
- Listen address and store retry tuning
- Optional telemetry export`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Fatalf("Failed to mark config flag as required: %v", err)
	}
}

// getKubernetesConfig returns a Kubernetes REST config
func getKubernetesConfig() (*rest.Config, error) {
	// Try in-cluster config first
	restConfig, err := rest.InClusterConfig()
	if err == nil {
		return restConfig, nil
	}

	// Fall back to kubeconfig
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	configOverrides := &clientcmd.ConfigOverrides{}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)
	return kubeConfig.ClientConfig()
}

// newCoordinationClient builds the coordination backend named by the config.
func newCoordinationClient(cfg *config.Config) (coordination.Client, error) {
	switch cfg.Backend.Type {
	case config.BackendTypeMemory:
		logger.Warn("Using in-memory backend; policy configuration will not survive restarts")
		return coordination.NewMemoryClient(), nil

	case config.BackendTypeConfigMap:
		restConfig, err := getKubernetesConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes config: %w", err)
		}
		scheme := runtime.NewScheme()
		if err := clientgoscheme.AddToScheme(scheme); err != nil {
			return nil, fmt.Errorf("failed to build scheme: %w", err)
		}
		k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		cm := cfg.Backend.ConfigMap
		return coordination.NewConfigMapClient(k8sClient, cm.Name, cm.Namespace, cm.Key), nil

	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Backend.Type)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	logger.Initialize(viper.GetBool("debug"))

	// Initialize controller-runtime logger to suppress warnings
	ctrllog.SetLogger(ctrlzap.New(ctrlzap.UseDevMode(false)))

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := cfg.Server.Address
	if flagAddress := viper.GetString("address"); flagAddress != "" {
		address = flagAddress
	}
	logger.Infof("Starting policy server on %s (backend: %s)", address, cfg.Backend.Type)

	telemetryProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MeterConfig{
		ServiceName:    "policy-server",
		ServiceVersion: versions.GetVersionInfo().Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	metrics, err := telemetry.NewMetrics(telemetryProvider.Meter)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	coordClient, err := newCoordinationClient(cfg)
	if err != nil {
		return err
	}

	configStore := store.New(coordClient,
		store.WithMaxAttempts(cfg.Store.MaxAttempts),
		store.WithInitialBackoff(cfg.Store.InitialBackoffDuration()),
		store.WithConflictHook(metrics.RecordRevisionConflict),
	)
	processor := command.NewProcessor(configStore, plugins.NewBuiltinRegistry(), metrics)

	router := api.NewServer(configStore, processor,
		api.WithMiddlewares(middleware.Recoverer),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Infof("Received signal %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Telemetry shutdown failed: %v", err)
	}
	return nil
}
