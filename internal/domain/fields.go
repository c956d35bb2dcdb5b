package domain

// Index field name constants for consistent references in mappings and
// queries. Caption transcripts are indexed under one dynamic field per
// language, named CaptionFieldPrefix + language.
const (
	FieldTitle       = "title"
	FieldKeywords    = "keywords"
	FieldDescription = "description"

	CaptionFieldPrefix = "captions."
)

// StaticFields lists the schema fields every shard carries.
var StaticFields = []string{FieldTitle, FieldKeywords, FieldDescription}
