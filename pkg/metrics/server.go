package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerAddress string
}

const metricsPath = "/metrics"

// Serve runs the metrics endpoint on its own listener until ctx is done.
// An address of "" or "0" disables metrics serving.
func Serve(ctx context.Context, config Config) {
	if config.ServerAddress == "" || config.ServerAddress == "0" {
		return
	}

	logrus.Infof("metrics server is starting to listen at %s", config.ServerAddress)
	listener, err := net.Listen("tcp", config.ServerAddress)
	if err != nil {
		logrus.Fatalf("error creating the metrics listener: %v", err)
	}

	handler := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	mux := http.NewServeMux()
	mux.Handle(metricsPath, handler)
	server := http.Server{
		Handler: mux,
	}

	go func() {
		logrus.Infof("starting metrics server path %s", metricsPath)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error starting the metrics server: %v", err)
		}
	}()

	<-ctx.Done()
	if err := server.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error shutting down the metrics server: %v", err)
	}
}
