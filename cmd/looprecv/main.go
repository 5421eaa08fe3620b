// Command looprecv joins a multicast group, reassembles a looped payload
// broadcast by loopsend, and writes the result to standard output.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/oguerrier/loopcast"
	"github.com/oguerrier/loopcast/pkg/netif"
	"github.com/oguerrier/loopcast/pkg/receiver"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

func main() {
	runID := xid.New().String()
	log := logrus.WithFields(logrus.Fields{"role": "receiver", "run_id": runID})

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts, err := loopcast.ParseFlags(loopcast.RoleReceiver, fs, os.Args[1:], log)
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

	r, err := receiver.New(opts, ifaceAddr, reportStats(log), log)
	if err != nil {
		log.Fatalf("init receiver: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	returnValue, err := r.Run(ctx, os.Stdout)
	var exitOnValue *receiver.ErrExitOnValue
	if errors.As(err, &exitOnValue) {
		if opts.Verbose {
			log.Infof("return code is now known (=%d), exiting", exitOnValue.ReturnValue)
		}
		os.Exit(int(exitOnValue.ReturnValue))
	}
	if err != nil {
		log.Fatalf("receiver: %v", err)
	}
	os.Exit(int(returnValue))
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
