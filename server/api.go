package server

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

//go:embed www
var staticWWW embed.FS

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	handle := func(method, route string, h httprouter.Handle) {
		www.Handle(s.Log, router, method, route, h)
	}

	handle("GET", "/api/ping", s.httpPing)

	handle("GET", "/api/session/status", s.httpSessionStatus)
	handle("GET", "/api/session/labels", s.httpSessionLabels)
	handle("POST", "/api/session/label/:categoryID", s.httpSessionSetLabel)
	handle("POST", "/api/session/resync", s.httpSessionResync)
	handle("POST", "/api/session/next", s.httpSessionNext)
	handle("POST", "/api/session/previous", s.httpSessionPrevious)
	handle("POST", "/api/session/skip", s.httpSessionSkip)
	handle("POST", "/api/session/submit", s.httpSessionSubmit)

	handle("GET", "/api/image", s.httpImage)

	handle("POST", "/api/annotation/snapshot", s.httpAnnotationSnapshot)
	handle("GET", "/api/annotation/list", s.httpAnnotationList)
	handle("POST", "/api/annotation/delete/:index", s.httpAnnotationDelete)
	handle("POST", "/api/annotation/deleteLast", s.httpAnnotationDeleteLast)

	handle("GET", "/api/segment/prompts", s.httpSegmentPrompts)
	handle("POST", "/api/segment/mask", s.httpSegmentMask)
	handle("GET", "/api/segment/overlay", s.httpSegmentOverlay)
	handle("POST", "/api/segment/saveMask", s.httpSegmentSaveMask)

	handle("GET", "/api/ws/canvas", s.httpWSCanvas)

	isImmutable := true
	var fsys fs.FS
	fsysRoot := "www"
	fsys = staticWWW
	if s.HotReloadWWW {
		relRoot := "server/www"
		absRoot, err := filepath.Abs(relRoot)
		if err != nil {
			s.Log.Errorf("Failed to resolve static file directory %v: %v", relRoot, err)
			return errors.New("Failed to resolve static file directory for hot reload")
		}
		s.Log.Infof("Serving static files from %v, with hot reload", absRoot)
		fsys = os.DirFS(absRoot)
		fsysRoot = ""
		isImmutable = false
	}

	static, err := staticfiles.NewCachedStaticFileServer(fsys, fsysRoot, []string{"/api/"}, s.Log, isImmutable, nil)
	if err != nil {
		s.Log.Warnf("Error in static files: %v", err)
	}
	router.NotFound = static

	s.httpRouter = router
	return nil
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendText(w, "pong")
}
