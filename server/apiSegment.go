package server

import (
	"fmt"
	"image/png"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpSegmentPrompts(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.session.Prompts())
}

// httpSegmentMask runs the segmentation model over the accumulated prompt
// points and stores the mask on the session.
func (s *Server) httpSegmentMask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.segmenter == nil {
		www.PanicBadRequestf("Segmentation is not configured on this server")
	}
	if err := s.session.ShowMask(r.Context(), s.segmenter); err != nil {
		www.PanicBadRequestf("%v", err)
	}
	www.SendOK(w)
}

// httpSegmentOverlay sends the current image with the mask painted in the
// active label's color.
func (s *Server) httpSegmentOverlay(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	img, err := s.session.MaskOverlay()
	if err != nil {
		www.PanicBadRequestf("%v", err)
	}
	sendPNG(w, img)
}

// httpSegmentSaveMask writes the current mask into the configured mask
// directory, named after the image it belongs to.
func (s *Server) httpSegmentSaveMask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.config.MaskRoot == "" {
		www.PanicBadRequestf("maskRoot is not configured on this server")
	}
	mask := s.session.Mask()
	if mask == nil {
		www.PanicBadRequestf("No mask: generate one first")
	}
	www.Check(os.MkdirAll(s.config.MaskRoot, 0755))
	filename := filepath.Join(s.config.MaskRoot, fmt.Sprintf("mask_%v.png", s.session.Status().ImageIndex))
	f, err := os.Create(filename)
	www.Check(err)
	defer f.Close()
	www.Check(png.Encode(f, mask))
	s.Log.Infof("Saved mask to %v", filename)
	www.SendOK(w)
}
