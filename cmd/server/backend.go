package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cryptofyre/EssentialUtils-Mod/internal/persistence/claimstore"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/persistence/indexdb"
	persistlog "github.com/cryptofyre/EssentialUtils-Mod/internal/persistence/log"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/chunkloader"
	"github.com/cryptofyre/EssentialUtils-Mod/internal/sim/world/feature/work"
)

// backends groups the persistent sinks chosen at startup. Either field of
// the optional pair may be nil.
type backends struct {
	claims chunkloader.Store
	audit  work.AuditLogger

	index    *indexdb.SQLiteIndex
	auditLog *persistlog.MutationLogger
}

func openBackends(cfg runtimeConfig, logger *log.Logger) (*backends, error) {
	b := &backends{}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.ClaimBackend))
	if backend == "" {
		backend = "yaml"
	}
	switch backend {
	case "none", "off", "memory":
		logger.Printf("claim store disabled; claims last until shutdown")
	case "yaml":
		f := claimstore.NewYAMLFile(filepath.Join(cfg.DataDir, "chunkloader.yml"), logger)
		b.claims = f
		logger.Printf("claim store: %s", f.Path())
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "claims.sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.index = idx
		b.claims = idx
		logger.Printf("claim store: sqlite")
	default:
		return nil, fmt.Errorf("unsupported EU_CLAIM_BACKEND: %s", backend)
	}

	var sinks persistlog.Tee
	if cfg.AuditLog {
		b.auditLog = persistlog.NewMutationLogger(cfg.DataDir)
		sinks = append(sinks, b.auditLog)
	}
	if b.index != nil {
		sinks = append(sinks, b.index)
	}
	switch len(sinks) {
	case 0:
	case 1:
		b.audit = sinks[0]
	default:
		b.audit = sinks
	}
	return b, nil
}

func (b *backends) Close(logger *log.Logger) {
	if b.auditLog != nil {
		if err := b.auditLog.Close(); err != nil {
			logger.Printf("close audit log: %v", err)
		}
	}
	if b.index != nil {
		if err := b.index.Close(); err != nil {
			logger.Printf("close index: %v", err)
		}
	}
}
