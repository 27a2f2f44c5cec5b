package router

import (
	"github.com/blanjamart/account-service/internal/application"
	"github.com/blanjamart/account-service/internal/container"
	gcsinfra "github.com/blanjamart/account-service/internal/infrastructure/gcs"
	pginfra "github.com/blanjamart/account-service/internal/infrastructure/postgres"
	handlers "github.com/blanjamart/account-service/internal/interface/http"
	"github.com/blanjamart/account-service/internal/router/modules"
	"github.com/blanjamart/account-service/pkg/helpers"
)

func buildAccountModule() *modules.AccountModule {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	assets := gcsinfra.NewAssetStore(container.GetGCS(), cfg.GCSBucket, "photos")

	service := application.NewService(
		repo,
		helpers.NewBcryptHasher(0),
		container.GetTokens(),
		assets,
		container.GetRedis(),
		container.GetLogger(),
		cfg.DefaultPhotoURL,
		cfg.ProfileTTL,
		cfg.ExternalCallTimeout,
	)

	handler := handlers.NewAccountHandler(
		service,
		container.GetLogger(),
		container.GetRabbitPub(),
		cfg,
	)

	return modules.NewAccountModule(handler, container.GetTokens())
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	r.Add(buildAccountModule())
	r.Add(modules.NewDebugModule())
}
