package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"
)

const sessionDBName = "whatsapp.db"

type StoreConfig struct {
	// Kind is "sqlite" (credentials kept in Dir) or "postgres".
	Kind        string
	Dir         string
	DatabaseURL string
}

// OpenDevice opens the credential store and returns the paired device, or a
// fresh one that still needs a QR scan.
func OpenDevice(ctx context.Context, cfg StoreConfig, log waLog.Logger) (*store.Device, *sqlstore.Container, error) {
	var (
		db      *sql.DB
		dialect string
		err     error
	)
	switch cfg.Kind {
	case "postgres":
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		dialect = "postgres"
	default:
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create session dir: %w", err)
		}
		dsn := "file:" + filepath.Join(cfg.Dir, sessionDBName) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		db, err = sql.Open("sqlite", dsn)
		dialect = "sqlite3"
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	container := sqlstore.NewWithDB(db, dialect, log)
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("upgrade session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("load device: %w", err)
	}
	return device, container, nil
}
