// walletkitd runs the wallet managers for every configured network.
//
// Usage:
//
//	walletkitd [--testnet] [--networks=...]  Run the managers
//	walletkitd --help                        Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/walletkit/config"
	"github.com/Klingon-tech/walletkit/internal/service"
)

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	switch {
	case flags.Help:
		config.PrintUsage()
		return
	case flags.Version:
		fmt.Printf("walletkitd version %s\n", config.Version)
		return
	}

	s, err := service.New(cfg, service.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := s.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		s.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	s.Stop()
}
