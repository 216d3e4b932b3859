package server

import (
	"image"
	"image/png"
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func sendPNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	www.Check(png.Encode(w, img))
}

// httpImage sends the current radiograph at canvas resolution.
func (s *Server) httpImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	img, err := s.session.Canonical()
	checkNav(err)
	sendPNG(w, img)
}
