package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	mbp "go.gazette.dev/core/mainboilerplate"
	server "go.gazette.dev/core/server"
	"go.gazette.dev/core/task"

	"github.com/itplaylab/eventgate/gateway"
	"github.com/itplaylab/eventgate/ingest"
)

const iniFilename = "eventgate.ini"

// Config is the top-level configuration object of the event gateway.
var Config = new(gateway.Config)

type cmdServe struct{}

func (cmdServe) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()
	mbp.InitLog(Config.Log)

	log.WithFields(log.Fields{
		"config":    Config,
		"version":   mbp.Version,
		"buildDate": mbp.BuildDate,
	}).Info("eventgate configuration")

	// Bind our server listener, grabbing a random available port if Port is zero.
	var srv, err = server.New("", Config.Gateway.Port)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	gw, err := gateway.New(*Config)
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}
	var tasks = task.NewGroup(context.Background())

	ingest.RegisterAPIs(srv, gw)
	gw.QueueTasks(tasks)
	srv.QueueTasks(tasks)

	log.WithFields(log.Fields{
		"mode": gw.Modes.Mode,
		"port": Config.Gateway.Port,
	}).Info("starting eventgate")

	// Install signal handler & start gateway tasks.
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	tasks.Queue("watch signalCh", func() error {
		select {
		case sig := <-signalCh:
			log.WithField("signal", sig).Info("caught signal")

			tasks.Cancel()
			srv.BoundedGracefulStop()
			return nil

		case <-tasks.Context().Done():
			return nil
		}
	})
	tasks.GoRun()

	// Block until all tasks complete.
	if err = tasks.Wait(); err != nil {
		return fmt.Errorf("task failed: %w", err)
	}

	log.Info("goodbye")
	return nil
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("serve", "Serve as event ingest gateway", `
Serve the event ingest gateway with the provided configuration, until
signaled to exit (via SIGTERM).
`, &cmdServe{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
