package sequence

import (
	"github.com/smallbiznis/buildledger/internal/sequence/domain"
	"github.com/smallbiznis/buildledger/internal/sequence/repository"
	"github.com/smallbiznis/buildledger/internal/sequence/service"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("sequence.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewStrategy),
	fx.Invoke(migrate),
)

func migrate(cfg dbpkg.Config, db *gorm.DB) error {
	return dbpkg.AutoMigrate(cfg, db, &domain.Sequence{})
}
