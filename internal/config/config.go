package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ServerConfig is the top-level server configuration document: bind port,
// the paths of the other three configuration documents, and the product
// type this instance dispatches.
type ServerConfig struct {
	MESService struct {
		BindPort uint16 `json:"bind_port"`
	} `json:"mes_service"`
	ProductionSystem struct {
		GraphFile        string `json:"graph_file"`
		CapabilitiesFile string `json:"capabilities_file"`
	} `json:"production_system"`
	ProductInfo struct {
		ProductsFile string `json:"products_file"`
		ProductType  uint8  `json:"product_type"`
	} `json:"product_info"`

	Observability ObservabilityConfig `json:"-"`
	RateLimit     RateLimitConfig     `json:"-"`
}

// DistributionSpec is the wire shape of a time distribution: a type tag and
// an ordered parameter vector.
type DistributionSpec struct {
	Type       string    `json:"type"`
	Parameters []float64 `json:"parameters"`
}

// VertexSpec is a single station entry in the graph document.
type VertexSpec struct {
	ID                      uint32           `json:"id"`
	Name                    string           `json:"name"`
	BufferCapacity          uint8            `json:"buffer_capacity"`
	ServiceTimeDistribution DistributionSpec `json:"service_time_distribution"`
}

// ArcSpec is a single transfer-link entry in the graph document.
type ArcSpec struct {
	Tail                     uint32           `json:"tail"`
	Head                     uint32           `json:"head"`
	TransferTimeDistribution DistributionSpec `json:"transfer_time_distribution"`
}

// GraphConfig is the station-graph document.
type GraphConfig struct {
	Vertices []VertexSpec `json:"vertices"`
	Arcs     []ArcSpec    `json:"arcs"`
}

// StationCapabilitySpec is a single station entry in the capabilities document.
type StationCapabilitySpec struct {
	ID                      uint32  `json:"id"`
	ProcessCapability       *uint32 `json:"process_capability,omitempty"`
	IsOrderAssigningStation bool    `json:"is_order_assigning_station"`
}

// CapabilitiesConfig is the station-capabilities document.
type CapabilitiesConfig struct {
	Stations []StationCapabilitySpec `json:"stations"`
}

// ProcessSpec is a single process step inside a product's plan.
type ProcessSpec struct {
	ProcessID uint8 `json:"process_id"`
}

// ProductSpec is a single product entry in the products document.
type ProductSpec struct {
	ProductType uint8         `json:"product_type"`
	ProductName string        `json:"product_name"`
	Processes   []ProcessSpec `json:"processes"`
}

// ProductsConfig is the products document. Only the record matching the
// server config's configured product type is loaded by the caller.
type ProductsConfig struct {
	Products []ProductSpec `json:"products"`
}

// ObservabilityConfig configures the structured logger and metrics provider.
type ObservabilityConfig struct {
	ServiceName string
	LogLevel    string
	LogFormat   string
}

// RateLimitConfig bounds how fast a single station connection may submit
// queries to the dispatcher.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	ShutdownGrace     time.Duration
}

// DefaultObservability returns the observability defaults used when the
// environment does not override them.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		ServiceName: getEnv("DISPATCH_SERVICE_NAME", "dispatchd"),
		LogLevel:    getEnv("DISPATCH_LOG_LEVEL", "info"),
		LogFormat:   getEnv("DISPATCH_LOG_FORMAT", "json"),
	}
}

// DefaultRateLimit returns the per-connection query rate limit defaults.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: getFloatEnv("DISPATCH_RATE_LIMIT_RPS", 200),
		Burst:             getIntEnv("DISPATCH_RATE_LIMIT_BURST", 50),
		ShutdownGrace:     getDurationEnv("DISPATCH_SHUTDOWN_GRACE", 5*time.Second),
	}
}

// LoadServerConfig reads and parses the top-level server config document.
func LoadServerConfig(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "loading server config %q", path)
	}
	cfg.Observability = DefaultObservability()
	cfg.RateLimit = DefaultRateLimit()
	return &cfg, nil
}

// LoadGraphConfig reads and parses the station-graph document.
func LoadGraphConfig(path string) (*GraphConfig, error) {
	var cfg GraphConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "loading graph config %q", path)
	}
	return &cfg, nil
}

// LoadCapabilitiesConfig reads and parses the capabilities document.
func LoadCapabilitiesConfig(path string) (*CapabilitiesConfig, error) {
	var cfg CapabilitiesConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "loading capabilities config %q", path)
	}
	return &cfg, nil
}

// LoadProductsConfig reads and parses the products document.
func LoadProductsConfig(path string) (*ProductsConfig, error) {
	var cfg ProductsConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "loading products config %q", path)
	}
	return &cfg, nil
}

func loadJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
