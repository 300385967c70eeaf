/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/framecore/engine"
	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/testbed"
)

func main() {
	configPath := flag.String("config", "engine.toml", "path to the engine configuration")
	watchShaders := flag.Bool("watch-shaders", false, "rebuild pipelines when compiled shaders change")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	if *watchShaders {
		cfg.Assets.WatchShaders = true
	}

	tb := testbed.NewTestGame()

	engine, err := engine.New(tb.Game, cfg)
	if err != nil {
		panic(err)
	}

	if err := engine.Initialize(); err != nil {
		_ = engine.Shutdown()
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the window and the GPU belong to the main thread: only ask the loop to stop
	go func() {
		<-sigCh
		engine.Stop()
	}()

	runErr := engine.Run()
	if err := engine.Shutdown(); err != nil {
		core.LogError("shutdown failed: %s", err)
	}
	if runErr != nil {
		panic(runErr)
	}
}
