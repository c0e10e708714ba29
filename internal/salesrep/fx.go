package salesrep

import (
	"github.com/smallbiznis/buildledger/internal/ratelimit"
	"github.com/smallbiznis/buildledger/internal/salesrep/domain"
	"github.com/smallbiznis/buildledger/internal/salesrep/repository"
	"github.com/smallbiznis/buildledger/internal/salesrep/service"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("salesrep.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideLocker),
	fx.Provide(service.New),
	fx.Invoke(ensureTables),
)

// A nil *ratelimit.Locker must surface as a nil interface, not a typed nil.
func provideLocker(l *ratelimit.Locker) domain.Locker {
	if l == nil {
		return nil
	}
	return l
}

// projects and users belong to the wider application schema; they are only
// created here when missing so a standalone deployment can start.
func ensureTables(cfg dbpkg.Config, db *gorm.DB) error {
	if !cfg.AutoMigrate {
		return nil
	}
	m := db.Migrator()
	for _, model := range []any{&domain.User{}, &domain.Project{}} {
		if m.HasTable(model) {
			continue
		}
		if err := m.CreateTable(model); err != nil {
			return err
		}
	}
	return nil
}
