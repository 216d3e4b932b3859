package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/dentamark/dentamark/pkg/anno"
	"github.com/dentamark/dentamark/server/session"
)

// httpWSCanvas is the streaming variant of /api/annotation/snapshot.
// The drawing surface re-sends its full object state on every interaction,
// which is chatty over individual HTTP posts; a websocket keeps one
// connection open for the whole canvas session. Each message is a snapshot,
// each reply is the updated annotation count.
func (s *Server) httpWSCanvas(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpWSCanvas websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()
	s.Log.Infof("Canvas websocket connected")

	type reply struct {
		Error       string `json:"error,omitempty"`
		Added       int    `json:"added"`
		Annotations int    `json:"annotations"`
		Prompts     int    `json:"prompts"`
	}

	for {
		snap := anno.Snapshot{}
		if err := c.ReadJSON(&snap); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.Log.Warnf("Canvas websocket read failed: %v", err)
			}
			break
		}
		added, err := s.session.ApplySnapshot(snap)
		if err != nil {
			c.WriteJSON(reply{Error: err.Error()})
			if errors.Is(err, session.ErrComplete) {
				break
			}
			continue
		}
		c.WriteJSON(reply{
			Added:       added,
			Annotations: len(s.session.Annotations()),
			Prompts:     len(s.session.Prompts()),
		})
	}
	s.Log.Infof("Canvas websocket closed")
}
