package id

import (
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisOptions returns redis.Options populated from standard environment variables.
//
// Environment variables read (with defaults):
//   - REDIS_ADDR (default: "localhost:6379")
//   - REDIS_PASSWORD (default: "")
//   - REDIS_DB (default: 0)
//
// For Cluster, Sentinel or TLS setups construct redis.Options directly.
//
//	client := redis.NewClient(id.RedisOptions())
//	defer client.Close()
//	alloc, err := id.NewRedisNodeAllocator(client, id.DefaultAllocatorConfig(), logger, metrics)
func RedisOptions() *redis.Options {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}
}

// RedisOptionsWithOverrides returns RedisOptions with explicit overrides.
// Empty strings and zero sizes keep the environment value.
func RedisOptionsWithOverrides(addr, password string, poolSize, minIdleConns int) *redis.Options {
	opts := RedisOptions()

	if addr != "" {
		opts.Addr = addr
	}
	if password != "" {
		opts.Password = password
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	if minIdleConns > 0 {
		opts.MinIdleConns = minIdleConns
	}

	return opts
}

// ServerConfigFromEnv builds a ServerConfig from environment variables.
//
// Environment variables read (with defaults):
//   - IDSERVER_PORT (default: 5433)
//   - IDSERVER_NODE: EUI48 for the static source, interface name for the interface source
//   - IDSERVER_NODE_SOURCE (default: "static" when IDSERVER_NODE is set, else "interface")
//   - IDSERVER_PAYLOAD (default: 0, at most 0x3FFF)
//   - IDSERVER_BACKEND (default: "filesystem"), IDSERVER_DATA (default: "./data"),
//     IDSERVER_REGION, IDSERVER_ENDPOINT: where the stored source keeps its record
//   - IDSERVER_NODE_PREFIX: 24-bit hex prefix for the redis source (default: 020000)
//
// A variable that is set but does not parse, or does not fit its field, is
// reported as ErrInvalidConfig. The result is otherwise not validated; call
// Validate before use.
func ServerConfigFromEnv() (ServerConfig, error) {
	cfg := ServerConfig{
		Port:       DefaultServerPort,
		Node:       os.Getenv("IDSERVER_NODE"),
		NodeSource: os.Getenv("IDSERVER_NODE_SOURCE"),
		Backend: BackendConfig{
			Type:     getEnv("IDSERVER_BACKEND", "filesystem"),
			Bucket:   getEnv("IDSERVER_DATA", "./data"),
			Region:   os.Getenv("IDSERVER_REGION"),
			Endpoint: os.Getenv("IDSERVER_ENDPOINT"),
		},
		Allocator: DefaultAllocatorConfig(),
	}

	if v := os.Getenv("IDSERVER_PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return ServerConfig{}, envError("IDSERVER_PORT", v, "must be a TCP port")
		}
		cfg.Port = int(port)
	}

	if v := os.Getenv("IDSERVER_PAYLOAD"); v != "" {
		payload, err := strconv.ParseUint(v, 10, 16)
		if err != nil || payload > MaxPayload {
			return ServerConfig{}, envError("IDSERVER_PAYLOAD", v, "must be an integer between 0 and 16383")
		}
		cfg.Generator.Payload = uint16(payload)
	}

	if v := os.Getenv("IDSERVER_NODE_PREFIX"); v != "" {
		prefix, err := ParseHex(v)
		if err != nil || prefix > 0xFFFFFF {
			return ServerConfig{}, envError("IDSERVER_NODE_PREFIX", v, "must be at most 6 hex digits")
		}
		cfg.Allocator.Prefix = uint32(prefix)
	}

	if cfg.NodeSource == "" {
		if cfg.Node != "" {
			cfg.NodeSource = NodeSourceStatic
		} else {
			cfg.NodeSource = NodeSourceInterface
		}
	}

	return cfg, nil
}

func envError(key, value, reason string) error {
	return WithContext(ErrInvalidConfig, map[string]interface{}{
		"env":    key,
		"value":  value,
		"reason": reason,
	})
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvAsInt reads an integer environment variable with a default fallback.
func getEnvAsInt(key string, defaultVal int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultVal
	}

	return value
}
