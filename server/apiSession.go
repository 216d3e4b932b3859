package server

import (
	"errors"
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/dentamark/dentamark/server/session"
)

// checkNav translates session errors into HTTP responses. A completed
// session is not a server fault, so it gets a 400 instead of a 500.
func checkNav(err error) {
	if errors.Is(err, session.ErrComplete) {
		www.PanicBadRequestf("%v", err)
	}
	www.Check(err)
}

func (s *Server) httpSessionStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.session.Status())
}

type labelJSON struct {
	CategoryID int    `json:"categoryID"`
	Name       string `json:"name"`
	Color      string `json:"color"`
}

// httpSessionLabels returns the label picker contents: one entry per
// category, in the configured language, with its display color.
func (s *Server) httpSessionLabels(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	language := www.QueryValue(r, "language")
	if language == "" {
		language = s.config.Language
	}
	vocab := s.session.Vocabulary()
	names := vocab.DisplayLabels(language)
	colors := vocab.LabelColors()
	labels := make([]labelJSON, len(names))
	for i := range names {
		labels[i] = labelJSON{
			CategoryID: vocab.CategoryBase() + i,
			Name:       names[i],
			Color:      colors[i],
		}
	}
	www.SendJSON(w, labels)
}

func (s *Server) httpSessionSetLabel(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	categoryID := www.ParseID(params.ByName("categoryID"))
	if err := s.session.SetLabel(int(categoryID)); err != nil {
		www.PanicBadRequestf("%v", err)
	}
	www.SendOK(w)
}

// httpSessionResync is called by a freshly loaded page. The canvas key is
// rotated so old in-flight snapshots are dropped, and the returned status
// carries the new key for the client to adopt.
func (s *Server) httpSessionResync(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.session.ResyncCanvas()
	www.SendJSON(w, s.session.Status())
}

func (s *Server) httpSessionNext(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	checkNav(s.session.Next())
	www.SendJSON(w, s.session.Status())
}

func (s *Server) httpSessionPrevious(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	checkNav(s.session.Previous())
	www.SendJSON(w, s.session.Status())
}

func (s *Server) httpSessionSkip(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	checkNav(s.session.Skip())
	www.SendJSON(w, s.session.Status())
}

func (s *Server) httpSessionSubmit(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	checkNav(s.session.Submit())
	www.SendJSON(w, s.session.Status())
}
