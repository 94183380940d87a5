package remote

// Document is one entry of the remote catalog. The client never edits it in
// place; lists are replaced wholesale on every reload.
type Document struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Filename         string `json:"filename"`
	SourceURL        string `json:"source_url,omitempty"`
	SourceFile       string `json:"source_file,omitempty"`
	ChunkCount       int    `json:"chunks_count"`
	SizeBytes        int64  `json:"size_bytes"`
	CreatedAt        string `json:"created_at"`
	ProcessingMethod string `json:"processing_method,omitempty"`
	PageCount        *int   `json:"pages,omitempty"`
	TableCount       *int   `json:"tables,omitempty"`
	ImageCount       *int   `json:"images,omitempty"`
	ContentPreview   string `json:"content_preview"`
}

type DocumentList struct {
	Documents []Document `json:"documents"`
}

// Stats is the flattened catalog snapshot.
type Stats struct {
	TotalChunks       int            `json:"total_chunks"`
	DocumentCount     int            `json:"document_count"`
	TotalSizeMB       float64        `json:"total_size_mb"`
	ProcessingMethods map[string]int `json:"processing_methods,omitempty"`
	Backends          []string       `json:"backends,omitempty"`
	CurrentMode       string         `json:"current_mode,omitempty"`
	GeminiConfigured  bool           `json:"gemini_configured"`
	LocalAIAvailable  bool           `json:"local_ai_available"`
	OllamaAvailable   bool           `json:"ollama_available"`
	OllamaModels      []string       `json:"ollama_models,omitempty"`
}

type statsWire struct {
	VectorStorage struct {
		TotalChunks int `json:"total_chunks"`
	} `json:"vector_storage"`
	Documents struct {
		Count             int            `json:"count"`
		TotalSizeMB       float64        `json:"total_size_mb"`
		ProcessingMethods map[string]int `json:"processing_methods"`
	} `json:"documents"`
	System struct {
		GeminiConfigured bool     `json:"gemini_configured"`
		LocalAIAvailable bool     `json:"local_ai_available"`
		OllamaAvailable  bool     `json:"ollama_available"`
		OllamaModels     []string `json:"ollama_models"`
	} `json:"system"`
	AIConfig struct {
		CurrentMode    string   `json:"current_mode"`
		AvailableModes []string `json:"available_modes"`
	} `json:"ai_config"`
}

func (w statsWire) flatten() *Stats {
	return &Stats{
		TotalChunks:       w.VectorStorage.TotalChunks,
		DocumentCount:     w.Documents.Count,
		TotalSizeMB:       w.Documents.TotalSizeMB,
		ProcessingMethods: w.Documents.ProcessingMethods,
		Backends:          w.AIConfig.AvailableModes,
		CurrentMode:       w.AIConfig.CurrentMode,
		GeminiConfigured:  w.System.GeminiConfigured,
		LocalAIAvailable:  w.System.LocalAIAvailable,
		OllamaAvailable:   w.System.OllamaAvailable,
		OllamaModels:      w.System.OllamaModels,
	}
}

type AddDocumentRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// IngestResult is returned by both add-by-URL and file upload.
type IngestResult struct {
	Message        string  `json:"message,omitempty"`
	DocumentID     string  `json:"document_id,omitempty"`
	ChunksCreated  int     `json:"chunks_created"`
	ProcessingTime float64 `json:"processing_time"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ExportRequest struct {
	Format          string `json:"format"`
	IncludeMetadata bool   `json:"include_metadata"`
}

// DefaultExport is the fixed body sent with every export call.
var DefaultExport = ExportRequest{Format: "json", IncludeMetadata: true}

// Archive is a binary export payload.
type Archive struct {
	Filename    string
	ContentType string
	Data        []byte
}

type QueryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	AIMode     string `json:"ai_mode,omitempty"`
}

type SourceMatch struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

type QueryResult struct {
	Query           string        `json:"query"`
	Answer          string        `json:"answer"`
	Sources         []SourceMatch `json:"sources"`
	BackendModeUsed string        `json:"ai_mode_used"`
}

type AIConfig struct {
	CurrentMode      string   `json:"current_mode"`
	AvailableModes   []string `json:"available_modes"`
	GeminiConfigured bool     `json:"gemini_configured"`
	LocalAIAvailable bool     `json:"local_ai_available"`
}

type setAIConfigRequest struct {
	AIMode string `json:"ai_mode"`
}

type errorBody struct {
	Detail any `json:"detail"`
}
