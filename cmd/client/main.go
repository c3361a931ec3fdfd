// Paroliere Client - Main Entry Point
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"paroliere/internal/client"
	"paroliere/pkg/logger"
)

var (
	version  = "1.0.0"
	host     = flag.String("host", "localhost", "Server host")
	port     = flag.Int("port", 8080, "Server port")
	logLevel = flag.String("log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")
	logFile  = flag.String("log-file", "", "Log file path (optional)")
)

func main() {
	flag.Parse()

	log, err := logger.New(logger.Options{
		Name:  "client",
		Level: logger.ParseLevel(*logLevel),
		File:  *logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	log.Info("Starting Paroliere client v%s, server %s", version, addr)

	display := client.NewDisplay(os.Stdout)
	c, err := client.Dial(addr, display, client.NewInputHandler(os.Stdin), log)
	if err != nil {
		display.PrintError("%v", err)
		os.Exit(1)
	}
	display.PrintHelp()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		display.PrintError("%v", err)
		log.Sync()
		os.Exit(1)
	}
}
