// Command simrun drives a phase.Instance through NRT -> CP0 -> CP1 ->
// CP2 -> CP3 -> CP4 against an in-memory hal.Simulator standing in for
// a ring of slaves, logging each transition and exporting the running
// instance's state as Prometheus metrics the way exporter_example1
// wires a TCPInfoCollector into an HTTP handler.
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sercos3/csmd/hal"
	"github.com/sercos3/csmd/metrics"
	"github.com/sercos3/csmd/phase"
	"github.com/sercos3/csmd/svc"
	"github.com/sercos3/csmd/topology"
	"github.com/sercos3/csmd/wire"
)

func main() {
	listen := flag.String("listen", ":18090", "address to serve /metrics on")
	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	projected := []wire.SercosAddress{10, 11, 12}

	h := hal.NewSimulator(4096, 4096, 8)
	cfg := phase.DefaultConfig()
	in := phase.NewInstance(h, cfg, projected, log)
	in.SVCPrimitive = simPrimitive

	coll := metrics.NewCollector("csmd", []string{"instance"}, prometheus.Labels{"run": "simrun"}, func(err error) {
		log.WithError(err).Warn("metrics collection error")
	})
	coll.Add(in, []string{"ring0"})
	prometheus.MustRegister(coll)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.WithField("listen", *listen).Info("serving /metrics")
		if err := http.ListenAndServe(*listen, nil); err != nil {
			log.WithError(err).Fatal("metrics server failed")
		}
	}()

	runRing(log, in, coll, projected)
}

// simPrimitive answers every service-channel request immediately with
// command-executed, standing in for the hardware SVC container a real
// cmd/simrun would drive via hal.HAL.
func simPrimitive(req svc.Request) (svc.Result, error) {
	return svc.Result{State: svc.CmdCleared}, nil
}

// runRing drives the instance through every communication phase once,
// feeding address-scan samples and validity acknowledgements a real
// cyclic-processing loop would derive from received telegrams.
func runRing(log *logrus.Logger, in *phase.Instance, coll *metrics.Collector, addrs []wire.SercosAddress) {
	indices := make([]wire.TopologyIndexWord, len(addrs))
	for i, a := range addrs {
		indices[i] = wire.TopologyIndexWord(wire.NewAT0AddressSlot(a, false))
	}

	drive := func(name string, step func() phase.StepResult) phase.StepResult {
		var last phase.StepResult
		for i := 0; i < 10000; i++ {
			in.Tick()
			last = step()
			if last.Code != phase.FunctionInProcess {
				log.WithFields(logrus.Fields{
					"step":   name,
					"code":   last.Code.String(),
					"cycles": i + 1,
				}).Info("phase step finished")
				return last
			}
		}
		log.WithField("step", name).Error("phase step did not converge")
		return last
	}

	drive("SetPhase0", func() phase.StepResult {
		in.FeedAddressScanSample(1, 1, indices, topology.LinkP1|topology.LinkP2, topology.TelSecondary, topology.TelPrimary)
		return in.SetPhase0()
	})
	log.WithField("topology", in.Topology().String()).Info("CP0 reached")

	drive("SetPhase1", func() phase.StepResult {
		in.RecordSlaveValid(true)
		in.RecordSVCValid(true)
		in.RecordSVCHandshakeAck(true)
		in.FeedRingDelaySample(1000, 1000)
		return in.SetPhase1()
	})

	drive("SetPhase2", func() phase.StepResult {
		in.RecordSlaveValid(true)
		in.RecordSVCValid(true)
		in.RecordSVCHandshakeAck(true)
		return in.SetPhase2()
	})

	drive("SetPhase3", func() phase.StepResult {
		in.RecordSlaveValid(true)
		return in.SetPhase3()
	})

	drive("SetPhase4", func() phase.StepResult {
		return in.SetPhase4()
	})

	log.WithField("phase", in.Phase().String()).Info("ring fully commissioned; scraping /metrics will now report CP4")

	for {
		in.Tick()
		time.Sleep(time.Second)
	}
}
