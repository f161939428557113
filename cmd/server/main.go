package main

import (
	"github.com/vigil-intel/vigil/internal/server"
	"github.com/vigil-intel/vigil/internal/util"
	"github.com/vigil-intel/vigil/pkg/logger"
	"github.com/vigil-intel/vigil/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
