package config

const (
	// MaxBusinessNameLength fits VARCHAR(255)
	MaxBusinessNameLength = 255

	// MaxConversationTitleLength fits VARCHAR(255)
	MaxConversationTitleLength = 255

	// MaxMessageContentLength caps a single message body (bytes).
	MaxMessageContentLength = 100_000

	// MaxMessagesPerSave caps one saveMessages batch.
	MaxMessagesPerSave = 100

	// MaxAccessTypeLength is the longest grant tag accepted.
	MaxAccessTypeLength = 64

	// MaxChunkTextLength caps a single RAG chunk (bytes).
	MaxChunkTextLength = 20_000

	// MaxChunksPerUpload caps one AddChunks batch.
	MaxChunksPerUpload = 256

	// MaxMetadataKeys caps the metadata object of a chunk.
	MaxMetadataKeys = 32

	// MaxQueryTextLength caps a RAG question.
	MaxQueryTextLength = 4_000

	// DefaultTopK and MaxTopK bound RAG retrieval.
	DefaultTopK = 5
	MaxTopK     = 20

	// DefaultEmbeddingDimensions matches the rag_chunks column of the original schema (1536).
	DefaultEmbeddingDimensions = 1536

	// DefaultPageSize and MaxPageSize bound list endpoints.
	DefaultPageSize = 50
	MaxPageSize     = 200
)
