package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/dentamark/dentamark/server"
)

func main() {
	parser := argparse.NewParser("dentamark", "Annotation server for dental radiographs")
	hotReloadWWW := parser.Flag("", "hot", &argparse.Options{Help: "Hot reload www instead of embedding into binary", Default: false})
	configFilePath := parser.String("c", "config", &argparse.Options{Help: "Config file path", Default: "dentamark.json"})
	port := parser.Int("p", "port", &argparse.Options{Help: "HTTP listen port", Default: 8083})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	s, err := server.NewServer(*configFilePath)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	s.HotReloadWWW = *hotReloadWWW
	s.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := s.ListenHTTP(fmt.Sprintf(":%v", *port)); err != nil {
		fmt.Printf("%v\n", err)
	}
}
