package main

import (
	"context"
	"fmt"
	"log/slog"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/channel"
	"callbridge/internal/config"
	"callbridge/internal/credentials"
	"callbridge/internal/directory"
	"callbridge/internal/endpoints"
	"callbridge/internal/migrations"
	"callbridge/internal/notify"
	"callbridge/internal/routing"
	"callbridge/pkg/utils"
)

const serviceName = "callbridge"

type deps struct {
	Directory *directory.Directory
	Endpoints *endpoints.Registry
	Router    *routing.CallRouter
	Sessions  *auth.Manager
	AuditLog  *audit.MemoryRepo

	closers []func()
}

// Close releases connections in reverse order of acquisition. Safe to call twice.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (*deps, error) {
	d := &deps{}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	dirStore, epStore, err := d.openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	d.AuditLog = audit.NewMemoryRepo(0)
	auditSvc := audit.NewService(d.AuditLog)

	d.Directory = directory.New(dirStore, nil)
	d.Directory.Audit = auditSvc
	d.Directory.Log = log.With("component", "directory")

	d.Endpoints = endpoints.NewRegistry(epStore)
	d.Endpoints.Log = log.With("component", "endpoints")

	issuer, err := newIssuer(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher, err := d.newDispatcher(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	d.Router = routing.NewCallRouter(d.Directory, d.Endpoints, channel.NewNamer(), issuer, dispatcher)
	d.Router.Audit = routing.AuditAdapter{Audit: auditSvc}
	d.Router.Log = log.With("component", "router")
	d.Router.Provider = cfg.Push.Provider
	d.Router.Timeout = cfg.App.CollaboratorTimeout
	d.Router.CredentialTTL = cfg.Credentials.TokenTTL

	d.Sessions, err = auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, err
	}

	ok = true
	return d, nil
}

func (d *deps) openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (directory.Store, endpoints.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addrs: cfg.RedisAddrs(), Password: cfg.Redis.Password})
		if err != nil {
			return nil, nil, fmt.Errorf("redis init: %w", err)
		}
		d.closers = append(d.closers, func() { _ = rdb.Close() })
		log.Info("using redis store", "addrs", cfg.RedisAddrs())
		return directory.NewRedisStore(rdb, cfg.Redis.KeyPrefix), endpoints.NewRedisStore(rdb, cfg.Redis.KeyPrefix), nil

	case config.BackendPostgres:
		pool, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres init: %w", err)
		}
		d.closers = append(d.closers, pool.Close)

		sqlDB := utils.SQLDB(pool)
		err = migrations.Up(sqlDB)
		_ = sqlDB.Close()
		if err != nil {
			return nil, nil, err
		}
		log.Info("using postgres store", "host", cfg.DB.Host, "db", cfg.DB.Name)
		return directory.NewPostgresStore(pool), endpoints.NewPostgresStore(pool), nil

	default:
		log.Info("using in-memory store; state is lost on restart")
		return directory.NewMemoryStore(), endpoints.NewMemoryStore(), nil
	}
}

func newIssuer(cfg config.Config) (credentials.Issuer, error) {
	switch cfg.Credentials.Issuer {
	case config.IssuerHTTP:
		return credentials.NewHTTPIssuer(cfg.Credentials.IssuerURL, cfg.App.CollaboratorTimeout)
	case config.IssuerJWT:
		return credentials.NewJWTIssuer(cfg.Credentials.AppID, cfg.Credentials.AppCertificate)
	default:
		return credentials.NewAgoraIssuer(cfg.Credentials.AppID, cfg.Credentials.AppCertificate)
	}
}

func (d *deps) newDispatcher(ctx context.Context, cfg config.Config, log *slog.Logger) (notify.Dispatcher, error) {
	switch cfg.Push.Provider {
	case config.PushFCM:
		return notify.NewFCMDispatcher(ctx, cfg.Push.FCMCredentialsFile)
	case config.PushSNS:
		return notify.NewSNSDispatcher(cfg.Push.SNSRegion)
	case config.PushNATS:
		nc, err := notify.ConnectNATS(cfg.Push.NATSURL, serviceName, log)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = nc.Drain() })
		return notify.NewNATSDispatcher(nc, cfg.Push.NATSSubjectPrefix), nil
	default:
		return notify.LogDispatcher{Log: log.With("component", "push")}, nil
	}
}
