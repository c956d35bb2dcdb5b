package index

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	regexpchar "github.com/blevesearch/bleve/v2/analysis/char/regexp"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/quidnu/subtubular/internal/domain"
)

const (
	// AnalyzerName is the transcript analyzer registered on every shard.
	AnalyzerName = "transcript"

	// splitPunctName is the char filter turning the split set into spaces.
	splitPunctName = "split_punct"

	// splitPunctPattern is the only punctuation treated as a token
	// boundary. Everything else (hyphens, apostrophes, brackets) stays
	// inside its token so compound words, contractions and the bracketed
	// placeholders of auto-generated captions survive as single terms.
	splitPunctPattern = `[,.?!"]`

	// maxFuzziness is the engine's edit-distance ceiling.
	maxFuzziness = 2
)

// Fuzziness derives the fuzzy-match bounds for one query term: the maximum
// edit distance floor(len/3) and the maximum sequential edits, 1 for terms
// shorter than 6 runes and floor(len/6) otherwise. Short terms always get at
// least one permitted edit while long ones stay bounded. The indexing engine
// only enforces the distance, clamped to its ceiling of 2; the sequential
// bound is part of the configuration contract and kept explicit here.
func Fuzziness(term string) (distance, sequentialEdits int) {
	n := utf8.RuneCountInString(term)
	distance = n / 3
	if distance > maxFuzziness {
		distance = maxFuzziness
	}
	if n < 6 {
		sequentialEdits = 1
	} else {
		sequentialEdits = n / 6
	}
	return distance, sequentialEdits
}

// buildMapping creates the index mapping shared by all shards: title,
// keywords and description as static fields plus one dynamic field per
// caption-track language under the captions sub-document, all analyzed
// case- and accent-insensitively with the transcript analyzer.
func buildMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomCharFilter(splitPunctName, map[string]interface{}{
		"type":    regexpchar.Name,
		"regexp":  splitPunctPattern,
		"replace": " ",
	}); err != nil {
		return nil, fmt.Errorf("register %s char filter: %w", splitPunctName, err)
	}

	if err := im.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"char_filters":  []string{asciifolding.Name, splitPunctName},
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register %s analyzer: %w", AnalyzerName, err)
	}

	textField := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = AnalyzerName
		fm.Store = true
		fm.IncludeTermVectors = true
		return fm
	}

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(domain.FieldTitle, textField())
	doc.AddFieldMappingsAt(domain.FieldKeywords, textField())
	doc.AddFieldMappingsAt(domain.FieldDescription, textField())

	// Caption languages are not known up front; the sub-document stays
	// dynamic so each language becomes a "captions.<language>" field.
	captions := bleve.NewDocumentMapping()
	captions.DefaultAnalyzer = AnalyzerName
	doc.AddSubDocumentMapping("captions", captions)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = AnalyzerName
	return im, nil
}

// documentFields flattens a video into the indexable document. Keywords are
// concatenated into a single field; MapKeywordMatches recovers per-keyword
// offsets from matches against it.
func documentFields(v *domain.Video) map[string]interface{} {
	doc := map[string]interface{}{
		domain.FieldTitle:       v.Title,
		domain.FieldKeywords:    strings.Join(v.Keywords, ""),
		domain.FieldDescription: v.Description,
	}
	if len(v.CaptionTracks) > 0 {
		caps := make(map[string]interface{}, len(v.CaptionTracks))
		for _, t := range v.CaptionTracks {
			caps[t.Language] = t.Text
		}
		doc["captions"] = caps
	}
	return doc
}
