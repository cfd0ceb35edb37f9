package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/network/coordinator"
	"github.com/deffrian/lattice-agreement/network/participant"
)

var (
	node       string
	protocol   string
	n          int
	f          int
	addr       string
	ip         string
	port       uint64
	clientPort uint64
	configFile string
	local      bool
	debug      bool
	useWAL     bool
	simDelay   bool
	dist       string
	dMean      float64
	dStd       float64
	stream     int
	cpuProfile string
	memProfile string
)

func usage() {
	flag.PrintDefaults()
}

func init() {
	flag.StringVar(&node, "node", "coordinator", "the node to start (coordinator or participant)")
	flag.StringVar(&protocol, "p", configs.FaleiroLA, "the agreement protocol (faleiro, gla, or zheng)")
	flag.IntVar(&n, "n", 3, "the number of participants")
	flag.IntVar(&f, "f", 1, "the maximum number of crash failures")
	flag.StringVar(&addr, "addr", "127.0.0.1:5001", "the coordinator server address")
	flag.StringVar(&ip, "ip", "127.0.0.1", "the ip of this participant")
	flag.Uint64Var(&port, "port", 6001, "the protocol port of this participant")
	flag.Uint64Var(&clientPort, "client_port", 6002, "the coordinator client port of this participant")
	flag.StringVar(&configFile, "config", "", "load knobs from a deployment config file")
	flag.BoolVar(&local, "local", false, "run a local test")
	flag.BoolVar(&debug, "debug", false, "log debug info into a debug file")
	flag.BoolVar(&useWAL, "wal", false, "journal results into a write-ahead log")
	flag.BoolVar(&simDelay, "sim_delay", false, "inject artificial per-send delays")
	flag.StringVar(&dist, "dis", configs.Normal, "the delay distribution (normal, exp, or plain)")
	flag.Float64Var(&dMean, "delay", 0, "the mean injected delay in ms")
	flag.Float64Var(&dStd, "dvar", 5, "the injected delay stddev in ms")
	flag.IntVar(&stream, "stream", 8, "proposals per process for the generalized protocol")
	flag.StringVar(&cpuProfile, "cpu_prof", "", "write cpu profiling")
	flag.StringVar(&memProfile, "mem_prof", "", "write memory profiling")

	flag.Usage = usage
}

func applyFlags() {
	if configFile != "" {
		configs.ConfigFileLocation = configFile
		configs.LoadDeployment()
	}
	if local {
		configs.SetLocal()
	}
	if configFile == "" {
		configs.NumberOfProcesses = n
		configs.MaxFaulty = f
		configs.SelectedProtocol = protocol
		configs.CoordinatorServerAddress = addr
	}
	configs.UseWAL = useWAL
	configs.SimulateNetworkDelay = simDelay
	configs.Distribution = dist
	configs.DelayMean = time.Duration(dMean * float64(time.Millisecond))
	configs.DelayStdDev = time.Duration(dStd * float64(time.Millisecond))
	configs.StreamLength = stream
	configs.Assert(configs.NumberOfProcesses > 2*configs.MaxFaulty, "need n > 2f")
}

func main() {
	flag.Parse()
	applyFlags()
	if debug {
		configs.ShowDebugInfo = true
		configs.LogToFile = true
		fl, err := os.OpenFile(fmt.Sprintf("logs/logfiles_%v.log", time.Now().String()), os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			log.Fatalf("error opening file: %v", err)
		}
		defer fl.Close()
		log.SetOutput(io.Writer(fl))
	}
	if cpuProfile != "" {
		fl, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatalf("error opening file: %v", err)
		}
		configs.CheckError(pprof.StartCPUProfile(fl))
		defer pprof.StopCPUProfile()
	}

	switch node {
	case "coordinator":
		runCoordinator()
	case "participant":
		participant.Main(ip, port, clientPort)
	default:
		log.Fatalf("unknown node kind %v", node)
	}

	if memProfile != "" {
		fl, err := os.Create(memProfile)
		if err != nil {
			log.Fatalf("error opening file: %v", err)
		}
		runtime.GC()
		configs.CheckError(pprof.WriteHeapProfile(fl))
		fl.Close()
	}
}

func runCoordinator() {
	nn := uint64(configs.NumberOfProcesses)
	ff := uint64(configs.MaxFaulty)
	if configs.SelectedProtocol == configs.FaleiroGLA {
		ca := coordinator.NewGLACoordinator(nn, ff, configs.CoordinatorServerAddress)
		results, ok := ca.Run(coordinator.DefaultStream(nn, uint64(configs.StreamLength)))
		for _, res := range results {
			fmt.Printf("process %v: %vus, %v outputs\n", res.ID, res.ElapsedMicros, len(res.Values))
		}
		fmt.Printf("verified: %v\n", ok)
		return
	}
	ca := coordinator.NewCoordinator(nn, ff, configs.CoordinatorServerAddress)
	results, ok := ca.Run(nil)
	for _, res := range results {
		fmt.Printf("process %v: %vus, value %v\n", res.ID, res.ElapsedMicros, res.Value.String())
	}
	fmt.Printf("verified: %v\n", ok)
}
