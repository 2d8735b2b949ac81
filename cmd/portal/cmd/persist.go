package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-elearning-portal/internal/config"
	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/jrsteele09/go-elearning-portal/session/redisrepo"
	"github.com/jrsteele09/go-elearning-portal/session/sqliterepo"
)

// openPersister returns the sealed session vault when persistence is enabled,
// and a close func for whatever backs it.
func openPersister(c config.Config) (session.Persister, func(), error) {
	if !c.GetPersistSession() {
		return session.NopPersister{}, func() {}, nil
	}

	sealer, err := session.NewSealer(c.GetSessionKey())
	if err != nil {
		return nil, nil, fmt.Errorf("session key: %w", err)
	}

	var (
		repo    session.Repo
		closeFn func()
	)
	switch c.GetSessionStore() {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		repo = redisrepo.New(client, "")
		closeFn = func() { _ = client.Close() }
	default:
		sqlRepo, err := sqliterepo.New(c.GetSessionDSN())
		if err != nil {
			return nil, nil, err
		}
		repo = sqlRepo
		closeFn = func() { _ = sqlRepo.Close() }
	}

	log.Info().Str("store", c.GetSessionStore()).Msg("session persistence enabled")
	return session.NewVault(repo, sealer, c.GetClientID()), closeFn, nil
}
