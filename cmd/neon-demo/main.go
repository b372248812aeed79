// Command neon-demo wires two EPAs into a ping-pong HSM exchange plus a
// monitor EPA driven by a repeating event timer, to exercise the kernel's
// scheduler, HSM dispatch, and timer wheel end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nradulovic-go/neon"
	"github.com/nradulovic-go/neon/internal/epa"
	"github.com/nradulovic-go/neon/internal/hsm"
	"github.com/nradulovic-go/neon/internal/logging"
	"github.com/nradulovic-go/neon/internal/memproto"
)

const (
	sigBounce hsm.Signal = hsm.SigUser
	sigStatus hsm.Signal = hsm.SigUser + 1
)

// rallyState is the workspace shared by the ping and pong EPAs: each holds
// a pointer to the other, filled in once both EPAs exist, and a running
// bounce count used both for its own log line and for the monitor's
// periodic status report.
type rallyState struct {
	name    string
	kernel  *neon.Kernel
	peer    *epa.EPA
	bounces *int
	verbose bool
}

func rallyHandler(ws interface{}, ev hsm.Event) hsm.Action {
	s := ws.(*rallyState)
	switch ev.Signal {
	case hsm.SigEmpty:
		return hsm.Action{Kind: hsm.Super, Target: hsm.TopState}
	case hsm.SigEntry, hsm.SigExit, hsm.SigInit:
		return hsm.Action{Kind: hsm.Handled}
	case sigBounce:
		*s.bounces++
		if s.verbose {
			log.Printf("%s: bounce %d", s.name, *s.bounces)
		}
		next, err := s.kernel.CreateEvent(neon.EventHeaderSize, uint16(sigBounce))
		if err != nil {
			log.Printf("%s: dropping bounce, no event: %v", s.name, err)
			return hsm.Action{Kind: hsm.Handled}
		}
		if err := s.kernel.SendFIFO(s.peer, next); err != nil {
			log.Printf("%s: send to peer failed: %v", s.name, err)
		}
		return hsm.Action{Kind: hsm.Handled}
	default:
		return hsm.Action{Kind: hsm.Ignored}
	}
}

// monitorState prints a metrics snapshot and the rally's bounce count each
// time its event timer fires.
type monitorState struct {
	kernel  *neon.Kernel
	bounces *int
}

func monitorHandler(ws interface{}, ev hsm.Event) hsm.Action {
	s := ws.(*monitorState)
	switch ev.Signal {
	case hsm.SigEmpty:
		return hsm.Action{Kind: hsm.Super, Target: hsm.TopState}
	case hsm.SigEntry, hsm.SigExit, hsm.SigInit:
		return hsm.Action{Kind: hsm.Handled}
	case sigStatus:
		snap := s.kernel.MetricsSnapshot()
		fmt.Printf("status: bounces=%d dispatch_ops=%d avg_latency_ns=%d uptime=%s\n",
			*s.bounces, snap.DispatchOps, snap.AvgLatencyNs, time.Duration(snap.UptimeNs))
		return hsm.Action{Kind: hsm.Handled}
	default:
		return hsm.Action{Kind: hsm.Ignored}
	}
}

func main() {
	var (
		duration = flag.Duration("duration", 10*time.Second, "How long to run the demo before stopping")
		interval = flag.Duration("status-interval", 2*time.Second, "How often the monitor EPA reports status")
		verbose  = flag.Bool("v", false, "Log every bounce")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logging.SetDefault(logging.NewLogger(logConfig))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := neon.New(&neon.Options{Context: ctx})
	if err != nil {
		log.Fatalf("failed to create kernel: %v", err)
	}
	k.SetFallback(memproto.Libc{})

	bounces := 0

	pingWS := &rallyState{name: "ping", kernel: k, bounces: &bounces, verbose: *verbose}
	pongWS := &rallyState{name: "pong", kernel: k, bounces: &bounces, verbose: *verbose}
	rallyHSMState := hsm.State{Name: "rally", Handle: rallyHandler}

	pingEPA, err := k.Spawn("ping", 1, 4, pingWS, rallyHSMState)
	if err != nil {
		log.Fatalf("failed to spawn ping: %v", err)
	}
	pongEPA, err := k.Spawn("pong", 1, 4, pongWS, rallyHSMState)
	if err != nil {
		log.Fatalf("failed to spawn pong: %v", err)
	}
	pingWS.peer = pongEPA
	pongWS.peer = pingEPA

	monitorWS := &monitorState{kernel: k, bounces: &bounces}
	monitorEPA, err := k.Spawn("monitor", 2, 2, monitorWS, hsm.State{Name: "monitor", Handle: monitorHandler})
	if err != nil {
		log.Fatalf("failed to spawn monitor: %v", err)
	}

	cfg := k.Info()
	statusTicks := uint32(interval.Seconds() * float64(cfg.CoreTimerEventFreq))
	if statusTicks == 0 {
		statusTicks = 1
	}
	statusTimer, err := k.NewEventTimer(monitorEPA, uint16(sigStatus))
	if err != nil {
		log.Fatalf("failed to create status timer: %v", err)
	}
	statusTimer.Every(statusTicks)

	serve := make(chan error, 1)
	go func() { serve <- k.Run() }()

	first, err := k.CreateEvent(neon.EventHeaderSize, uint16(sigBounce))
	if err != nil {
		log.Fatalf("failed to create first event: %v", err)
	}
	if err := k.SendFIFO(pingEPA, first); err != nil {
		log.Fatalf("failed to kick off rally: %v", err)
	}

	fmt.Printf("neon-demo running for %s (status every %s); Ctrl+C to stop early\n", *duration, *interval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-time.After(*duration):
		fmt.Println("duration elapsed, stopping")
	case <-sigCh:
		fmt.Println("received shutdown signal, stopping")
	}

	statusTimer.Cancel()
	if err := k.Stop(); err != nil {
		log.Printf("error stopping kernel: %v", err)
	}
	<-serve

	snap := k.MetricsSnapshot()
	fmt.Printf("final: bounces=%d dispatch_ops=%d reclaim_ops=%d send_failures=%d\n",
		bounces, snap.DispatchOps, snap.ReclaimOps, snap.SendFailures)
}
