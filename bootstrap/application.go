// Package bootstrap provides application implementation
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/najoast/sngo/config"
	"github.com/najoast/sngo/core"
	"github.com/najoast/sngo/network"
)

// DefaultApplication implements the Application interface
type DefaultApplication struct {
	// config holds the application configuration
	config interface{}

	// container provides dependency injection
	container Container

	// lifecycleManager manages service lifecycles
	lifecycleManager LifecycleManager

	// configLoader manages configuration loading
	configLoader *config.Loader

	// actor system for message passing
	actorSystem core.ActorSystem

	// ingressActor is the fixed destination every accepted TCP frame is
	// posted to, via a network.ActorPropagator.
	ingressActor core.Actor

	// listener accepts TCP connections and propagates frames onto
	// ingressActor's mailbox.
	listener *network.Listener

	// listenAddr is the address listener.Start is called with once the
	// network-server service starts.
	listenAddr string

	// mutex protects concurrent access
	mutex sync.RWMutex

	// running indicates if the application is running
	running bool

	// shutdownChan for graceful shutdown
	shutdownChan chan os.Signal
}

// NewApplication creates a new SNGO application
func NewApplication() Application {
	container := NewContainer()
	lifecycleManager := NewLifecycleManager(container)

	app := &DefaultApplication{
		container:        container,
		lifecycleManager: lifecycleManager,
		shutdownChan:     make(chan os.Signal, 1),
		configLoader:     config.NewLoader(),
	}

	// Register core services
	app.registerCoreServices()

	return app
}

// Configure configures the application with the provided configuration
func (app *DefaultApplication) Configure(cfg interface{}) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.running {
		return fmt.Errorf("cannot configure application while running")
	}

	app.config = cfg
	return app.configureCoreServices(cfg)
}

// Run runs the application until shutdown
func (app *DefaultApplication) Run(ctx context.Context) error {
	app.mutex.Lock()
	if app.running {
		app.mutex.Unlock()
		return fmt.Errorf("application is already running")
	}
	app.running = true
	app.mutex.Unlock()

	// Setup signal handling for graceful shutdown
	signal.Notify(app.shutdownChan, os.Interrupt, syscall.SIGTERM)

	// Start all services
	if err := app.lifecycleManager.Start(ctx); err != nil {
		app.mutex.Lock()
		app.running = false
		app.mutex.Unlock()
		return fmt.Errorf("failed to start services: %w", err)
	}

	// Wait for shutdown signal or context cancellation
	select {
	case <-app.shutdownChan:
		fmt.Println("Received shutdown signal, starting graceful shutdown...")
	case <-ctx.Done():
		fmt.Println("Context cancelled, starting graceful shutdown...")
	}

	// Shutdown gracefully
	return app.Shutdown(context.Background())
}

// Shutdown shuts down the application gracefully
func (app *DefaultApplication) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	if !app.running {
		app.mutex.Unlock()
		return nil // Already shut down
	}
	app.running = false
	app.mutex.Unlock()

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop all services
	if err := app.lifecycleManager.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop services: %w", err)
	}

	return nil
}

// Container returns the dependency injection container
func (app *DefaultApplication) Container() Container {
	return app.container
}

// LifecycleManager returns the lifecycle manager
func (app *DefaultApplication) LifecycleManager() LifecycleManager {
	return app.lifecycleManager
}

// registerCoreServices registers core SNGO services
func (app *DefaultApplication) registerCoreServices() {
	// Register actor system service
	app.lifecycleManager.Register("actor-system", &ActorSystemService{app: app})

	// Register network server service
	app.lifecycleManager.Register("network-server", &NetworkServerService{app: app}, "actor-system")
}

// configureCoreServices configures core services with the provided configuration
func (app *DefaultApplication) configureCoreServices(cfg interface{}) error {
	// Initialize actor system
	actorSystem := core.NewActorSystem()
	app.actorSystem = actorSystem

	// Register actor system in container
	app.container.RegisterInstance("actor-system", actorSystem)

	// Initialize the TCP ingress if configuration is provided: a fixed
	// actor that every accepted connection's frames are posted to via
	// network.ActorPropagator, and the Listener that accepts connections
	// and drives that propagation.
	if configMap, ok := cfg.(map[string]interface{}); ok {
		if networkConfig, exists := configMap["network"]; exists {
			if netCfg, ok := networkConfig.(map[string]interface{}); ok {
				addr := "localhost:8080"
				if a, exists := netCfg["address"]; exists {
					if addrStr, ok := a.(string); ok {
						addr = addrStr
					}
				}

				ingressActor, err := actorSystem.NewActor(&ingressHandler{}, core.DefaultActorOptions())
				if err != nil {
					return fmt.Errorf("failed to create ingress actor: %w", err)
				}
				app.ingressActor = ingressActor

				propagator := network.NewActorPropagator(ingressActor)
				listener, err := network.NewListener(network.DefaultListenerConfig(), propagator, nil, nil)
				if err != nil {
					return fmt.Errorf("failed to create network listener: %w", err)
				}

				app.listener = listener
				app.listenAddr = addr
				app.container.RegisterInstance("network-listener", listener)
			}
		}
	}

	return nil
}

// ingressHandler is the default MessageHandler for the TCP ingress
// actor: it logs every frame handed off by the listener's
// ActorPropagator. A deployment with an actual wire protocol replaces
// this with real frame dispatch.
type ingressHandler struct{}

func (h *ingressHandler) HandleMessage(ctx context.Context, msg *core.Message) error {
	fmt.Printf("ingress: received %d bytes from actor %d\n", len(msg.Data), msg.Source)
	return nil
}

// ActorSystemService wraps the actor system as a managed service
type ActorSystemService struct {
	app *DefaultApplication
}

func (s *ActorSystemService) Name() string {
	return "actor-system"
}

func (s *ActorSystemService) Start(ctx context.Context) error {
	if s.app.actorSystem == nil {
		s.app.actorSystem = core.NewActorSystem()
		s.app.container.RegisterInstance("actor-system", s.app.actorSystem)
	}
	return nil
}

func (s *ActorSystemService) Stop(ctx context.Context) error {
	if s.app.actorSystem != nil {
		return s.app.actorSystem.Shutdown(ctx)
	}
	return nil
}

func (s *ActorSystemService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.actorSystem == nil {
		return HealthStatus{
			State:   HealthUnhealthy,
			Message: "Actor system not initialized",
		}, nil
	}

	return HealthStatus{
		State:   HealthHealthy,
		Message: "Actor system running",
	}, nil
}

// NetworkServerService wraps the network server as a managed service
type NetworkServerService struct {
	app *DefaultApplication
}

func (s *NetworkServerService) Name() string {
	return "network-server"
}

func (s *NetworkServerService) Start(ctx context.Context) error {
	if s.app.listener == nil {
		return nil // No network listener configured
	}

	return s.app.listener.Start(s.app.listenAddr)
}

func (s *NetworkServerService) Stop(ctx context.Context) error {
	if s.app.listener == nil {
		return nil
	}

	return s.app.listener.Stop()
}

func (s *NetworkServerService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.listener == nil {
		return HealthStatus{
			State:   HealthUnknown,
			Message: "Network listener not configured",
		}, nil
	}

	return HealthStatus{
		State:   HealthHealthy,
		Message: "Network listener running",
		Data: map[string]interface{}{
			"connections": s.app.listener.ClientCount(),
		},
	}, nil
}

// ApplicationBuilder helps build and configure applications
type ApplicationBuilder struct {
	app    *DefaultApplication
	config map[string]interface{}
}

// NewApplicationBuilder creates a new application builder
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		app:    NewApplication().(*DefaultApplication),
		config: make(map[string]interface{}),
	}
}

// WithConfig sets the configuration
func (b *ApplicationBuilder) WithConfig(cfg interface{}) *ApplicationBuilder {
	if configMap, ok := cfg.(map[string]interface{}); ok {
		for k, v := range configMap {
			b.config[k] = v
		}
	}
	return b
}

// WithConfigFile loads configuration from a file
func (b *ApplicationBuilder) WithConfigFile(filename string) *ApplicationBuilder {
	// For now, just return self - config file loading can be implemented later
	// when we have a clearer configuration structure
	return b
}

// WithService registers a service
func (b *ApplicationBuilder) WithService(name string, service Service, deps ...string) *ApplicationBuilder {
	b.app.lifecycleManager.Register(name, service, deps...)
	return b
}

// WithServiceFactory registers a service factory
func (b *ApplicationBuilder) WithServiceFactory(name string, factory ServiceFactory) *ApplicationBuilder {
	b.app.container.Register(name, factory)
	return b
}

// WithActorSystemConfig configures the actor system
func (b *ApplicationBuilder) WithActorSystemConfig() *ApplicationBuilder {
	b.config["actor_system"] = map[string]interface{}{
		"enabled": true,
	}
	return b
}

// WithNetworkConfig configures the network server
func (b *ApplicationBuilder) WithNetworkConfig(address string) *ApplicationBuilder {
	b.config["network"] = map[string]interface{}{
		"address": address,
	}
	return b
}

// Build builds the configured application
func (b *ApplicationBuilder) Build() (Application, error) {
	if len(b.config) > 0 {
		if err := b.app.Configure(b.config); err != nil {
			return nil, fmt.Errorf("failed to configure application: %w", err)
		}
	}
	return b.app, nil
}
