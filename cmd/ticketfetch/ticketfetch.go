package main

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"

	"github.com/dentamark/dentamark/pkg/classify"
	"github.com/dentamark/dentamark/pkg/ticket"
)

// ticketfetch pulls radiograph attachments out of a support ticket view,
// scrubs them (black border removal, OCR'd text blackout), classifies them
// by radiograph type, and files them into one directory per class, ready
// for an annotation session.

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	logger, err := logs.NewLog()
	check(err)

	parser := argparse.NewParser("ticketfetch", "Fetch and preprocess radiographs from support tickets")
	serverUrl := parser.String("s", "server", &argparse.Options{Help: "Ticket server URL (eg https://example.zendesk.com)", Required: true})
	viewID := parser.Int("v", "view", &argparse.Options{Help: "Ticket view ID to fetch", Required: true})
	outDir := parser.String("o", "out", &argparse.Options{Help: "Output directory", Default: "radiographs"})
	classifyUrl := parser.String("", "classify", &argparse.Options{Help: "Classification model server URL. Empty disables classification", Default: ""})
	confidence := parser.Float("", "text-confidence", &argparse.Options{Help: "OCR confidence threshold for text blackout", Default: float64(ticket.DefaultTextConfidence)})
	debug := parser.Flag("", "debug", &argparse.Options{Help: "Save OCR debug overlays next to each cleaned image", Default: false})
	err = parser.Parse(os.Args)
	if err != nil {
		logger.Errorf(parser.Usage(err))
		os.Exit(1)
	}

	email := os.Getenv("TICKET_EMAIL")
	token := os.Getenv("TICKET_TOKEN")
	if email == "" || token == "" {
		logger.Errorf("Must set TICKET_EMAIL and TICKET_TOKEN environment variables")
		os.Exit(1)
	}
	*serverUrl = strings.TrimSuffix(*serverUrl, "/")

	var classifier *classify.Client
	if *classifyUrl != "" {
		classifier, err = classify.NewClient(logger, *classifyUrl)
		if err != nil {
			logger.Errorf("Failed to connect to classification server: %v", err)
			os.Exit(1)
		}
	}

	tickets := ticket.NewClient(logger, *serverUrl, email, token)
	ticketIDs, err := tickets.TicketIDs(int64(*viewID))
	check(err)
	logger.Infof("View %v has %v tickets", *viewID, len(ticketIDs))

	rawDir := filepath.Join(*outDir, "raw")
	check(os.MkdirAll(rawDir, 0755))

	cleaned := []string{}
	images := []image.Image{}
	for _, id := range ticketIDs {
		files, err := tickets.RetrieveTicketImages(id, rawDir)
		if err != nil {
			logger.Warnf("Ticket %v: %v", id, err)
			continue
		}
		for _, file := range files {
			img, err := cleanImage(logger, file, *confidence, *debug)
			if err != nil {
				logger.Warnf("Failed to clean %v: %v", file, err)
				continue
			}
			cleaned = append(cleaned, file)
			images = append(images, img)
		}
	}
	logger.Infof("Cleaned %v images from %v tickets", len(cleaned), len(ticketIDs))

	if classifier == nil {
		logger.Infof("No classification server. Cleaned images remain in %v", rawDir)
		return
	}

	predictions, err := classifier.Classify(context.Background(), images)
	check(err)
	for i, pred := range predictions {
		classDir := filepath.Join(*outDir, strings.ReplaceAll(strings.ToLower(pred.Label), " ", "_"))
		check(os.MkdirAll(classDir, 0755))
		dest := filepath.Join(classDir, filepath.Base(cleaned[i]))
		check(imaging.Save(images[i], dest))
		logger.Infof("%v -> %v (confidence %.2f)", filepath.Base(cleaned[i]), pred.Label, pred.Confidence)
	}
}

// cleanImage crops black borders, blacks out any OCR-detected text (patient
// names etc), and overwrites the file with the cleaned version.
func cleanImage(logger logs.Log, file string, confidence float64, debug bool) (image.Image, error) {
	img, err := imaging.Open(file)
	if err != nil {
		return nil, err
	}
	img = ticket.CropBlackBorders(img)
	regions, err := ticket.DetectText(img)
	if err != nil {
		return nil, err
	}
	if debug && len(regions) > 0 {
		overlay := ticket.AnnotateTextRegions(img, regions, confidence)
		debugFile := strings.TrimSuffix(file, filepath.Ext(file)) + ".ocr.png"
		if err := imaging.Save(overlay, debugFile); err != nil {
			logger.Warnf("Failed to save OCR debug overlay: %v", err)
		}
	}
	img = ticket.RemoveText(img, regions, confidence)
	if err := imaging.Save(img, file); err != nil {
		return nil, err
	}
	return img, nil
}
