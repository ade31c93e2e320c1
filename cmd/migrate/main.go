package main

import (
	"encoding/json"
	"flag"

	"github.com/joripage/exchange-sim/config"
	"github.com/joripage/exchange-sim/pkg/infra"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	var down bool
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", "file://migration/sql", "Migration source url")
	flag.BoolVar(&down, "down", false, "Roll back every migration")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	if cfg.OmsDB == nil {
		zap.S().Fatal("oms_db section is required")
	}

	configBytes, err := json.MarshalIndent(cfg.OmsDB, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	mgTool := infra.GetMigrateTool()
	if down {
		err = mgTool.Down(source, cfg.OmsDB.MigrationConnURL)
	} else {
		err = mgTool.Up(source, cfg.OmsDB.MigrationConnURL)
	}
	if err != nil {
		zap.S().Fatalf("migration failed: %v", err)
	}
}
