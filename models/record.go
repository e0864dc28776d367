package models

import "time"

// ImageRecord is one entry in the dataset metadata file.
type ImageRecord struct {
	Filename       string     `json:"filename"`
	FilePath       string     `json:"filepath"`
	SourceType     SourceKind `json:"source_type"`
	SourceInfo     string     `json:"source_info"` // Page URL, image URL or video path
	FileSize       int64      `json:"file_size"`
	CreatedTime    time.Time  `json:"created_time"`
	ModifiedTime   time.Time  `json:"modified_time"`
	FileHash       string     `json:"file_hash"` // sha256, hex
	AddedToDataset time.Time  `json:"added_to_dataset"`
}
