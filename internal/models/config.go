package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Upload config
	Upload UploadConfig `yaml:"upload"`

	// OCR config
	OCR OCRConfig `yaml:"ocr"`

	// Storage backend: "local" or "minio"
	Storage StorageConfig `yaml:"storage"`
}

// UploadConfig locates uploaded files for the local backend
type UploadConfig struct {
	Dir string `yaml:"dir"` // base directory for local storage
}

// OCRConfig represents OCR-specific configuration
type OCRConfig struct {
	TesseractBin string `yaml:"tesseract_bin"` // default "tesseract"
	PdftotextBin string `yaml:"pdftotext_bin"` // default "pdftotext"
	Languages    string `yaml:"languages"`     // default "fra+eng"
}

// StorageConfig selects and configures the file storage backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // "local" (default) or "minio"
}
