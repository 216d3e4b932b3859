package server

// Config is the JSON config file of the annotation server.
type Config struct {
	ImageDir string `json:"imageDir"` // Directory of radiographs to annotate
	SaveRoot string `json:"saveRoot"` // COCO documents are written to <saveRoot>/<task>/annotations.json
	TaskDB   string `json:"taskDB"`   // Path to the sqlite task database (IDs and progress)
	Task     string `json:"task"`     // "tooth_numbers" or "anomalies"

	// Anomaly label names, only used when task is "anomalies".
	// Empty means the built-in label set.
	AnomalyLabels []string `json:"anomalyLabels"`

	// Language of the label picker ("Danish" or "International", case-insensitive)
	Language string `json:"language"`

	Segmentation *SegmentationConfig `json:"segmentation"`

	// Directory where generated masks are saved. Empty disables saving.
	MaskRoot string `json:"maskRoot"`
}

type SegmentationConfig struct {
	URL   string `json:"url"`   // Base URL of the segmentation model server
	Model string `json:"model"` // Model size: tiny, small, base_plus, large
}
