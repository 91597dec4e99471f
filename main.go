package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"rendiconto/config"
	"rendiconto/database"
	"rendiconto/logger"
	"rendiconto/middleware"
	"rendiconto/router"
	"rendiconto/service"

	"go.uber.org/zap"
)

//go:generate swag init -g main.go -o docs

// @title Rendiconto API
// @version 1.0
// @description Gestione dei rendiconti annuali di amministratori di sostegno e tutori: beneficiari, categorie, conto economico, firma ed esportazione Excel
// @host localhost:5050
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "file di configurazione esterno (opzionale)")
	flag.StringVar(&configFile, "c", "", "file di configurazione esterno (abbreviato)")
	flag.StringVar(&port, "port", "", "porta di ascolto, es. 5050 o :5050")
	flag.StringVar(&port, "p", "", "porta di ascolto (abbreviato)")
	flag.BoolVar(&showVersion, "version", false, "mostra la versione")
	flag.BoolVar(&showVersion, "v", false, "mostra la versione (abbreviato)")
}

func main() {
	flag.Parse()

	if showVersion {
		log.Println("rendiconto v1.0.0")
		return
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("caricamento configurazione fallito: %v", err)
	}

	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
		log.Printf("porta da riga di comando: %s", port)
	}

	config.PrintConfig()

	zlog, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("inizializzazione logger fallita: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := database.Init(cfg, zlog); err != nil {
		zlog.Fatal("inizializzazione database fallita", zap.Error(err))
	}
	db := database.GetDB()

	middleware.InitJWT(cfg)

	emailSvc := service.NewEmailService(&cfg.Email)
	users := service.NewUserService(db, zlog, service.UserServiceConfig{
		BcryptCost: cfg.Security.BcryptCost,
		Issuer:     middleware.IssueToken,
		Mailer:     emailSvc,
		ResetLink:  emailSvc.ResetLink,
		Signatures: service.NewSignatureStore(cfg.Upload),
	})
	categories := service.NewCategoryService(db, zlog)
	beneficiaries := service.NewBeneficiaryService(db, zlog)
	reports := service.NewReportService(db, zlog, beneficiaries, users)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := categories.SeedDefaults(ctx); err != nil {
		zlog.Error("creazione categorie default fallita", zap.Error(err))
	}
	cancel()

	r := router.SetupRouter(cfg, db, router.Services{
		Users:         users,
		Categories:    categories,
		Beneficiaries: beneficiaries,
		Reports:       reports,
	}, zlog)

	zlog.Info("rendiconto avviato",
		zap.String("addr", cfg.Server.Port),
		zap.String("swagger", "http://localhost"+cfg.Server.Port+"/swagger/index.html"),
		zap.String("api", "http://localhost"+cfg.Server.Port+"/api/"))

	if err := r.Run(cfg.Server.Port); err != nil {
		zlog.Fatal("avvio server fallito", zap.Error(err))
	}
}
