// Package config holds the process configuration. It is constructed
// once at startup and handed by reference to every component; reload
// replaces the pointer atomically instead of mutating shared state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/core"
	"github.com/giovaborgogno/siwe-auth/groups"
)

// Config is the full recognized option surface.
type Config struct {
	// ProviderURL is the Ethereum JSON-RPC endpoint. Required.
	ProviderURL string

	RedisURL   string
	ListenAddr string

	// CreateProfileOnAuth enables the best-effort ENS name/avatar
	// lookup during login.
	CreateProfileOnAuth bool

	// CreateGroupsOnAuth enables membership re-derivation during login
	// for every rule in Groups, in order.
	CreateGroupsOnAuth bool
	Groups             []groups.Rule

	// CSRFExempt disables the CSRF check on mutating endpoints.
	CSRFExempt bool

	CallTimeout time.Duration
	NonceTTL    time.Duration
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// Default returns a config with every optional knob at its default.
func Default() *Config {
	return &Config{
		RedisURL:            "redis://localhost:6379/0",
		ListenAddr:          ":9000",
		CreateProfileOnAuth: true,
		CreateGroupsOnAuth:  false,
		CSRFExempt:          false,
		CallTimeout:         10 * time.Second,
		NonceTTL:            core.DefaultNonceTTL,
		AccessTTL:           5 * time.Minute,
		RefreshTTL:          120 * time.Hour,
	}
}

// FromEnv loads the configuration from the environment. Group rules
// are constructed eagerly, so a misconfigured rule fails startup here
// rather than surfacing during a login.
func FromEnv(logger *zap.Logger) (*Config, error) {
	cfg := Default()

	cfg.ProviderURL = os.Getenv("PROVIDER_URL")
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("PROVIDER_URL is required")
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CREATE_ENS_PROFILE_ON_AUTH"); v != "" {
		cfg.CreateProfileOnAuth = parseBool(v)
	}
	if v := os.Getenv("CREATE_GROUPS_ON_AUTH"); v != "" {
		cfg.CreateGroupsOnAuth = parseBool(v)
	}
	if v := os.Getenv("CSRF_EXEMPT"); v != "" {
		cfg.CSRFExempt = parseBool(v)
	}
	if v := os.Getenv("CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CALL_TIMEOUT: %w", err)
		}
		cfg.CallTimeout = d
	}

	if v := os.Getenv("CUSTOM_GROUPS"); v != "" {
		rules, err := ParseGroupRules(v, logger)
		if err != nil {
			return nil, err
		}
		cfg.Groups = rules
	}

	return cfg, nil
}

// ParseGroupRules parses the CUSTOM_GROUPS syntax:
//
//	name:standard:contract[:tokenId][,name:standard:contract...]
//
// where standard is erc20, erc721 or erc1155. Configuration order is
// preserved; it is the evaluation order on login.
func ParseGroupRules(spec string, logger *zap.Logger) ([]groups.Rule, error) {
	var rules []groups.Rule
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid group rule %q: want name:standard:contract[:tokenId]", entry)
		}
		name, standard := parts[0], strings.ToLower(parts[1])

		cfg := groups.Config{"contract": parts[2]}
		if len(parts) > 3 {
			cfg["tokenId"] = parts[3]
		}

		var (
			checker groups.Checker
			err     error
		)
		switch standard {
		case "erc20":
			checker, err = groups.NewERC20Owner(cfg, logger)
		case "erc721":
			checker, err = groups.NewERC721Owner(cfg, logger)
		case "erc1155":
			checker, err = groups.NewERC1155Owner(cfg, logger)
		default:
			return nil, fmt.Errorf("unknown token standard %q in group rule %q", standard, entry)
		}
		if err != nil {
			return nil, err
		}

		rules = append(rules, groups.Rule{Name: name, Checker: checker})
	}
	return rules, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// Store publishes the active configuration. Readers get a consistent
// snapshot; Replace swaps the whole config at once.
type Store struct {
	ptr atomic.Pointer[Config]
}

// NewStore creates a store seeded with an initial config.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.ptr.Store(cfg)
	return s
}

// Load returns the current configuration snapshot.
func (s *Store) Load() *Config {
	return s.ptr.Load()
}

// Replace installs a new configuration for subsequent readers.
func (s *Store) Replace(cfg *Config) {
	s.ptr.Store(cfg)
}
