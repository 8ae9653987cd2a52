package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/giovaborgogno/siwe-auth/adapters/chain"
	"github.com/giovaborgogno/siwe-auth/adapters/events"
	"github.com/giovaborgogno/siwe-auth/adapters/store"
	"github.com/giovaborgogno/siwe-auth/adapters/tokenizer"
	"github.com/giovaborgogno/siwe-auth/config"
	"github.com/giovaborgogno/siwe-auth/groups"
	"github.com/giovaborgogno/siwe-auth/ports"
	"github.com/giovaborgogno/siwe-auth/service"
	transport "github.com/giovaborgogno/siwe-auth/transport/http"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.FromEnv(logger)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	cfgStore := config.NewStore(cfg)

	ctx := context.Background()

	signKey, err := loadSigningKey()
	if err != nil {
		logger.Fatal("failed to load signing key", zap.Error(err))
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to parse redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to reach redis", zap.Error(err))
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		logger.Fatal("failed to create event publisher", zap.Error(err))
	}

	caller, err := chain.Dial(ctx, cfg.ProviderURL, cfg.CallTimeout)
	if err != nil {
		logger.Fatal("failed to dial provider", zap.Error(err))
	}
	defer caller.Close()

	var resolver ports.NameResolver = chain.NoopResolver{}
	if cfg.CreateProfileOnAuth {
		resolver = chain.NewENSResolver(caller.Client(), logger)
	}

	redisStore := store.NewRedisStore(redisClient)
	syncer := groups.NewSyncer(redisStore, caller, logger)

	authService := service.NewAuthService(
		redisStore,
		redisStore,
		redisStore,
		tokenizer.NewJWTTokenizer(signKey),
		resolver,
		syncer,
		events.NewWatermillPublisher(publisher),
		cfgStore,
		logger,
	)

	router := transport.SetupRouter(authService, cfgStore, logger)

	logger.Info("starting server",
		zap.String("addr", cfg.ListenAddr),
		zap.Int("groups", len(cfg.Groups)),
		zap.Bool("ens_profiles", cfg.CreateProfileOnAuth))
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// loadSigningKey reads the session token signing key from
// JWT_SIGNING_KEY (hex-encoded EC private key, SEC 1 DER). Without one
// an ephemeral key is generated, which invalidates outstanding
// sessions on restart.
func loadSigningKey() (*ecdsa.PrivateKey, error) {
	raw := os.Getenv("JWT_SIGNING_KEY")
	if raw == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	der, err := hex.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	return x509.ParseECPrivateKey(der)
}
