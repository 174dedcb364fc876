package monitor

import (
	"net"
	"net/http"
	"strconv"

	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	monitoringServer *http.Server
)

func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func StartServer(port int) {
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
	monitoringServer = &http.Server{
		Handler: Handler(),
		Addr:    addr,
	}
	go func() {
		if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Exitf("metrics server: %v", err)
		}
	}()
	log.Infof("serving metrics on http://%s/metrics", addr)
}

func StopServer() {
	if monitoringServer != nil {
		monitoringServer.Close()
	}
}
