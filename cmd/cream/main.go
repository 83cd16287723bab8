// Command cream serves a bounded in-memory key/value cache over a binary TCP
// protocol, with optional pprof/Prometheus endpoints.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/milanderson/cream/cache"
	"github.com/milanderson/cream/metrics/prom"
	"github.com/milanderson/cream/server"
)

const usageText = `USAGE: ./cream [-h] NUM_WORKERS PORT_NUMBER MAX_ENTRIES
-h                 Displays this help menu and returns EXIT_SUCCESS.
NUM_WORKERS        The number of worker threads used to service requests.
PORT_NUMBER        Port number to listen on for incoming connections.
MAX_ENTRIES        The maximum number of entries that can be stored in cream's underlying data store.
`

func main() {
	flags := flag.NewFlagSet("cream", flag.ContinueOnError)
	flags.SetOutput(io.Discard) // usage is printed by hand below
	help := flags.BoolP("help", "h", false, "display this help menu")
	metricsAddr := flags.String("metrics", "", "serve Prometheus metrics at addr (e.g. :8080); empty = disabled")
	pprofAddr := flags.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")

	if err := flags.Parse(os.Args[1:]); err != nil {
		usage()
	}
	if *help {
		fmt.Print(usageText)
		os.Exit(0)
	}

	numWorkers, port, maxEntries := parseArgs(flags.Args())

	// Interrupt and broken-pipe signals are ignored: the service runs until
	// killed, and a vanished client must never take a worker down.
	signal.Ignore(syscall.SIGINT, syscall.SIGPIPE)

	var cacheMetrics cache.Metrics
	var serverMetrics server.Metrics
	if *metricsAddr != "" {
		cacheMetrics = prom.NewCache(nil, "cream", "cache", nil)
		serverMetrics = prom.NewServer(nil, "cream", "server", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	store, err := cache.New(cache.Options{
		Capacity: maxEntries,
		Metrics:  cacheMetrics,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	srv, err := server.New(server.Options{
		Addr:    fmt.Sprintf(":%d", port),
		Workers: numWorkers,
		Cache:   store,
		Logger:  stdLogger{log.New(os.Stderr, "", log.LstdFlags)},
		Metrics: serverMetrics,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("cream: listening on %s with %d workers, %d entries", srv.Addr(), numWorkers, maxEntries)
	if err := srv.Serve(); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// parseArgs validates the three positional arguments. Anything missing or
// parsing to zero is a usage error.
func parseArgs(args []string) (numWorkers, port, maxEntries int) {
	if len(args) != 3 {
		usage()
	}
	numWorkers = parsePositive(args[0])
	port = parsePositive(args[1])
	maxEntries = parsePositive(args[2])
	return
}

func parsePositive(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		usage()
	}
	return n
}

func usage() {
	fmt.Fprint(os.Stderr, usageText)
	os.Exit(1)
}

// stdLogger adapts the standard library logger to server.Logger.
type stdLogger struct{ l *log.Logger }

func (s stdLogger) Debug(msg string, keyvals ...interface{}) {} // quiet by default
func (s stdLogger) Info(msg string, keyvals ...interface{})  { s.print("INFO", msg, keyvals) }
func (s stdLogger) Warn(msg string, keyvals ...interface{})  { s.print("WARN", msg, keyvals) }
func (s stdLogger) Error(msg string, keyvals ...interface{}) { s.print("ERROR", msg, keyvals) }

func (s stdLogger) print(level, msg string, keyvals []interface{}) {
	line := level + " " + msg
	for i := 0; i+1 < len(keyvals); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	s.l.Println(line)
}
