package router

import (
	"strings"
	"time"

	"rendiconto/api"
	"rendiconto/config"
	_ "rendiconto/docs"
	"rendiconto/middleware"
	"rendiconto/models"
	"rendiconto/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services domain services the routes are bound to
type Services struct {
	Users         *service.UserService
	Categories    *service.CategoryService
	Beneficiaries *service.BeneficiaryService
	Reports       *service.ReportService
}

// SetupRouter builds the engine with every route under /api
func SetupRouter(cfg *config.Config, db *gorm.DB, svc Services, log *zap.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics())
	r.Use(CORSMiddleware(cfg.Server.FrontendURL))

	authHandler := api.NewAuthHandler(svc.Users, cfg.Upload, log)
	resetHandler := api.NewPasswordResetHandler(svc.Users, log)
	categoryHandler := api.NewCategoryHandler(svc.Categories, log)
	beneficiaryHandler := api.NewBeneficiaryHandler(svc.Beneficiaries, log)
	reportHandler := api.NewReportHandler(svc.Reports, log)
	healthHandler := api.NewHealthHandler(db, log)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", middleware.MetricsHandler())
	if cfg.Upload.Mode != "inline" {
		r.Static("/uploads", cfg.Upload.Dir)
	}

	v1 := r.Group("/api")
	v1.GET("/health", middleware.OptionalJWTAuth(svc.Users), healthHandler.Health)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", middleware.LoginRateLimit(cfg.Security.LoginPerMinute, cfg.Security.LoginBurst), authHandler.Login)
		auth.POST("/password/request-reset", resetHandler.RequestPasswordReset)
		auth.POST("/password/reset", resetHandler.ResetPassword)
	}

	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(svc.Users))
	{
		authorized.POST("/auth/logout", authHandler.Logout)
		authorized.GET("/auth/me", authHandler.Me)
		authorized.PUT("/auth/profile", authHandler.UpdateProfile)
		authorized.PUT("/auth/profile-completo", authHandler.UpdateFullProfile)
		authorized.PUT("/auth/password", authHandler.ChangePassword)
		authorized.POST("/auth/upload-firma", authHandler.UploadSignature)
		authorized.POST("/auth/upload-firma-file", authHandler.UploadSignatureFile)
		authorized.DELETE("/auth/delete-firma", authHandler.DeleteSignature)
		authorized.POST("/auth/verify-password", authHandler.VerifyPassword)

		categories := authorized.Group("/categorie")
		{
			categories.GET("", categoryHandler.List)
			categories.GET("/default", categoryHandler.ListDefault)
			categories.GET("/personalizzate", categoryHandler.ListPrivate)
			categories.POST("", categoryHandler.Create)
			categories.PUT("/:id", categoryHandler.Update)
			categories.DELETE("/:id", categoryHandler.Delete)
			categories.PATCH("/:id/attiva", categoryHandler.Reactivate)
		}

		beneficiaries := authorized.Group("/beneficiari")
		{
			beneficiaries.GET("", beneficiaryHandler.List)
			beneficiaries.POST("", beneficiaryHandler.Create)
			beneficiaries.GET("/:id", beneficiaryHandler.Get)
			beneficiaries.PUT("/:id", beneficiaryHandler.Update)
			beneficiaries.DELETE("/:id", beneficiaryHandler.Delete)
			beneficiaries.PUT("/:id/attiva", beneficiaryHandler.Reactivate)
			beneficiaries.GET("/:id/rendiconti", beneficiaryHandler.ListReports)
		}

		reports := authorized.Group("/rendiconti")
		{
			reports.GET("", reportHandler.List)
			reports.POST("", reportHandler.Create)
			reports.GET("/:id", reportHandler.Get)
			reports.PUT("/:id", reportHandler.Update)
			reports.DELETE("/:id", reportHandler.Delete)
			reports.PATCH("/:id/stato", reportHandler.SetState)
			reports.GET("/:id/completezza", reportHandler.Completeness)
			reports.POST("/:id/firma", reportHandler.ApplySignature)
			reports.GET("/:id/export", reportHandler.Export)
		}

		authorized.GET("/users/:userId/rendiconti",
			middleware.RequireRole(models.RoleAdministrator, models.RoleGuardian),
			middleware.RequireOwnership("userId"),
			reportHandler.ListForUser)
	}

	return r
}

// CORSMiddleware allows the configured frontend origins, comma separated; empty allows any origin
func CORSMiddleware(frontendURL string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	var origins []string
	for _, o := range strings.Split(frontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}
