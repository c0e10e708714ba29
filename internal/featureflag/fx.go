package featureflag

import (
	"github.com/smallbiznis/buildledger/internal/featureflag/domain"
	"github.com/smallbiznis/buildledger/internal/featureflag/repository"
	"github.com/smallbiznis/buildledger/internal/featureflag/service"
	dbpkg "github.com/smallbiznis/buildledger/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("featureflag.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(migrate),
)

func migrate(cfg dbpkg.Config, db *gorm.DB) error {
	return dbpkg.AutoMigrate(cfg, db, &domain.FeatureFlag{})
}
