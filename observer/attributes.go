package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrEmbedTextCount  = attribute.Key("llm.embed.text_count")
	AttrEmbedDimensions = attribute.Key("llm.embed.dimensions")

	AttrStoreOp       = attribute.Key("store.operation")
	AttrDocumentID    = attribute.Key("store.document_id")
	AttrChunkCount    = attribute.Key("store.chunk_count")
	AttrSearchK       = attribute.Key("store.search.k")
	AttrSearchResults = attribute.Key("store.search.results")
	AttrSearchKind    = attribute.Key("store.search.table_kind")
	AttrModalities    = attribute.Key("store.search.modalities")
)
