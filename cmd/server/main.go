package main

import (
	"wdkg/internal/config"
	"wdkg/internal/server"
	"wdkg/internal/util"
	"wdkg/pkg/logger"
	"wdkg/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load(util.GetEnvString("WDKG_CONFIG", "config.yaml"))
	if err != nil {
		panic(err)
	}

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Logging.Debug,
	})
	logger.Init(consoleLogger)

	server.Init(cfg)
}
