package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/config"
	"github.com/smallbiznis/crewbill/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Run(conn, cfg); err != nil {
			return err
		}
		if cfg.DefaultOrgID == 0 {
			log.Warn("DEFAULT_ORG not set, requests must carry X-Org-ID")
			return nil
		}
		return seed.EnsureDefaultOrg(conn, snowflake.ID(cfg.DefaultOrgID))
	}),
)
