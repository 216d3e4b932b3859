package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/dentamark/dentamark/pkg/anno"
)

// httpAnnotationSnapshot receives a full drawing-surface snapshot and
// reconciles it into the working annotation set.
func (s *Server) httpAnnotationSnapshot(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	snap := anno.Snapshot{}
	www.ReadJSON(w, r, &snap, 1024*1024)
	added, err := s.session.ApplySnapshot(snap)
	checkNav(err)
	type response struct {
		Added       int `json:"added"`
		Annotations int `json:"annotations"`
	}
	www.SendJSON(w, response{Added: added, Annotations: len(s.session.Annotations())})
}

func (s *Server) httpAnnotationList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.session.Annotations())
}

func (s *Server) httpAnnotationDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	index := www.ParseID(params.ByName("index"))
	if err := s.session.DeleteAnnotationAt(int(index)); err != nil {
		www.PanicBadRequestf("%v", err)
	}
	www.SendOK(w)
}

func (s *Server) httpAnnotationDeleteLast(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if !s.session.DeleteLastAnnotation() {
		www.PanicBadRequestf("No annotations to delete")
	}
	www.SendOK(w)
}
