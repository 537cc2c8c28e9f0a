package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/copilotgw/gateway/internal/api"
	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/logging"
	"github.com/copilotgw/gateway/internal/registry"
	_ "github.com/copilotgw/gateway/internal/translator/register"
	"github.com/copilotgw/gateway/internal/upstream"
	"github.com/copilotgw/gateway/internal/util"
	"github.com/copilotgw/gateway/internal/watcher"
	sdkaccess "github.com/copilotgw/gateway/sdk/access"
	_ "github.com/copilotgw/gateway/sdk/access/providers/configapikey"
)

func main() {
	logging.SetupBaseLogger()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Configure File Path")
	flag.Parse()

	var err error
	var cfg *config.Config
	var wd string

	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		wd, err = os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = path.Join(wd, "config.yaml")
		cfg, err = config.LoadConfig(configPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetLogLevel(cfg)

	store := config.NewStore(cfg)
	config.SetGlobal(cfg)

	catalog := registry.GetGlobalCatalog()
	catalog.Load(builtinModels())

	accessManager := sdkaccess.NewManager()
	providers, err := sdkaccess.BuildProviders(cfg)
	if err != nil {
		log.Fatalf("failed to build access providers: %v", err)
	}
	accessManager.SetProviders(providers)

	upstreamClient := upstream.NewClient(cfg)

	cfgWatcher, err := watcher.New(configPath, store)
	if err != nil {
		log.Warnf("config watcher disabled: %v", err)
	} else {
		defer func() { _ = cfgWatcher.Close() }()
	}

	server := api.NewServer(store, cfg, catalog, upstreamClient, accessManager)

	go func() {
		if startErr := server.Start(); startErr != nil {
			log.Fatalf("server error: %v", startErr)
		}
	}()
	log.Infof("gateway listening on :%d", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Stop(ctx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}

// builtinModels seeds the catalog with a fixed list of model IDs and the
// upstream endpoints each supports.
func builtinModels() []registry.Model {
	return []registry.Model{
		{ID: "gpt-5", SupportedEndpoints: []string{"/responses", "/chat/completions"}, Capabilities: registry.ModelCapabilities{MaxOutputTokens: 128000}},
		{ID: "gpt-5-codex", SupportedEndpoints: []string{"/responses"}, Capabilities: registry.ModelCapabilities{MaxOutputTokens: 128000}},
		{ID: "gpt-5-mini", SupportedEndpoints: []string{"/responses", "/chat/completions"}, Capabilities: registry.ModelCapabilities{MaxOutputTokens: 128000}},
		{ID: "gpt-4.1", SupportedEndpoints: []string{"/chat/completions"}, Capabilities: registry.ModelCapabilities{MaxOutputTokens: 32768}},
		{ID: "gpt-4o", SupportedEndpoints: []string{"/chat/completions"}, Capabilities: registry.ModelCapabilities{MaxOutputTokens: 16384}},
	}
}
