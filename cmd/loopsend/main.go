// Command loopsend broadcasts a payload read from standard input over a
// multicast group, looping until either the census of live receivers goes
// empty or a deadline elapses.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oguerrier/loopcast"
	"github.com/oguerrier/loopcast/pkg/census"
	"github.com/oguerrier/loopcast/pkg/control"
	"github.com/oguerrier/loopcast/pkg/netif"
	"github.com/oguerrier/loopcast/pkg/sender"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

func main() {
	runID := xid.New().String()
	log := logrus.WithFields(logrus.Fields{"role": "sender", "run_id": runID})

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var metricsAddr string
	fs.StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (disabled if empty)")

	opts, err := loopcast.ParseFlags(loopcast.RoleSender, fs, os.Args[1:], log)
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ifaceAddrBits, err := netif.PrimaryIPv4(opts.Interface)
	if err != nil {
		log.Fatalf("resolve interface %s: %v", opts.Interface, err)
	}
	ifaceAddr := uint32ToIP(ifaceAddrBits)

	inbox := control.NewInbox()
	stopSignalRelay := control.WireSignals(inbox)
	defer stopSignalRelay()

	s, err := sender.New(opts, ifaceAddr, inbox, reportStats(log), log)
	if err != nil {
		log.Fatalf("init sender: %v", err)
	}

	if metricsAddr != "" && s.Census() != nil {
		collector := census.NewCollector(s.Census(), prometheus.Labels{"app": "loopsend", "run_id": runID})
		prometheus.MustRegister(collector)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Warnf("metrics server: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := s.Run(ctx, os.Stdin); err != nil {
		log.Fatalf("sender: %v", err)
	}
}

func reportStats(log *logrus.Entry) loopcast.ReportStatsFn {
	return func(c *loopcast.StatsConn, state int) {
		log.Debugf("%s: sent=%d pkts/%d bytes recv=%d pkts/%d bytes",
			loopcast.ConnStatsStateMap[state], c.SentPackets, c.SentBytes, c.RecvPackets, c.RecvBytes)
	}
}

func uint32ToIP(addr uint32) net.IP {
	return net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}
