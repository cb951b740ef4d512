package model

// NamedDocument is one source document handed to the ingestion pipeline:
// a base filename plus raw bytes.
type NamedDocument struct {
	Name string
	Data []byte
}

// ChunkMetadata travels with every stored vector.
type ChunkMetadata struct {
	Source     string `json:"source"`
	IsPriority bool   `json:"isPriority"`
}

// VectorRow is the stored unit of the vector index.
type VectorRow struct {
	Content   string        `json:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"embedding"`
}

// IngestMeta is the small status record persisted after each run.
type IngestMeta struct {
	DocumentCount int64 `json:"document_count"`
	FileCount     int64 `json:"file_count"`
	LastIngested  int64 `json:"last_ingested_at"`
}

type IngestResult struct {
	VectorsCreated int `json:"vectors_created"`
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	Errors         int `json:"errors"`
}

type IngestProgress struct {
	ProcessedFiles int    `json:"processed_files"`
	TotalFiles     int    `json:"total_files"`
	CurrentFile    string `json:"current_file"`
	VectorsCreated int    `json:"vectors_created"`
}

// SystemStatus is the payload of GET /status.
type SystemStatus struct {
	IndexReady      bool     `json:"index_ready"`
	DocumentCount   int64    `json:"document_count"`
	LastIngested    int64    `json:"last_ingested_at,omitempty"`
	StructuredFiles []string `json:"structured_files"`
}
