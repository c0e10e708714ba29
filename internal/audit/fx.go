package audit

import (
	"github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/audit/repository"
	"github.com/smallbiznis/buildledger/internal/audit/service"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewDispatcher),
	fx.Provide(func(d *service.Dispatcher) domain.Dispatcher { return d }),
	fx.Invoke(migrate),
)

func migrate(cfg dbpkg.Config, db *gorm.DB) error {
	return dbpkg.AutoMigrate(cfg, db, &domain.SecurityEvent{})
}
