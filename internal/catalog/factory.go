package catalog

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aa-dank/slug-sweep-deduper/internal/config"
)

// NewFinderFromConfig opens the catalog named by cfg.Type.
func NewFinderFromConfig(cfg config.CatalogConfig) (*GormFinder, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(PostgresDSN(cfg))
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite catalog requires path to be set")
		}
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s catalog: %w", cfg.Type, err)
	}
	return NewGormFinder(db), nil
}

// PostgresDSN builds a keyword/value connection string for cfg.
func PostgresDSN(cfg config.CatalogConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quote(cfg.Host), port, quote(cfg.User), quote(cfg.Password), quote(cfg.Name), sslmode)
	if cfg.Timeout.Duration > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", int(cfg.Timeout.Seconds()))
	}
	return dsn
}

// quote escapes a libpq keyword value.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
