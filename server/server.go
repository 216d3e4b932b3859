package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/dentamark/dentamark/pkg/coco"
	"github.com/dentamark/dentamark/pkg/imagestore"
	"github.com/dentamark/dentamark/pkg/segment"
	"github.com/dentamark/dentamark/server/session"
	"github.com/dentamark/dentamark/server/taskdb"
)

type Server struct {
	HotReloadWWW bool
	Log          logs.Log

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader

	config    Config
	taskDB    *taskdb.TaskDB
	store     *imagestore.Store
	session   *session.Session
	segmenter *segment.Client // nil when segmentation is not configured
}

func NewServer(configFile string) (*Server, error) {
	cfg := Config{}
	if cfgB, err := os.ReadFile(configFile); err != nil {
		return nil, err
	} else {
		if err := json.Unmarshal(cfgB, &cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
		}
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}

	var vocab coco.Vocabulary
	switch cfg.Task {
	case "tooth_numbers", "":
		vocab = coco.ToothNumbers()
	case "anomalies":
		vocab = coco.Anomalies(cfg.AnomalyLabels)
	default:
		return nil, fmt.Errorf("Unknown task %v. Valid tasks are 'tooth_numbers' and 'anomalies'", cfg.Task)
	}

	taskDB, err := taskdb.NewTaskDB(logger, cfg.TaskDB)
	if err != nil {
		return nil, err
	}
	store, err := imagestore.NewStore(logger, cfg.ImageDir)
	if err != nil {
		return nil, err
	}
	if store.Count() == 0 {
		return nil, fmt.Errorf("No images found in %v", cfg.ImageDir)
	}

	var segmenter *segment.Client
	if cfg.Segmentation != nil {
		segmenter, err = segment.NewClient(logger, cfg.Segmentation.URL, segment.ModelSize(cfg.Segmentation.Model))
		if err != nil {
			return nil, err
		}
	} else {
		logger.Infof("Segmentation assist is not configured")
	}

	sess, err := session.NewSession(logger, store, coco.NewExporter(logger, vocab), taskDB, cfg.SaveRoot)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Log:       logger,
		config:    cfg,
		taskDB:    taskDB,
		store:     store,
		session:   sess,
		segmenter: segmenter,
	}
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// port example: ":8081"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	s.Log.Infof("Closing HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := s.httpServer.Shutdown(ctx)
	defer cancel()
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.Log.Close()
}
