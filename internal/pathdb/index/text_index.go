package index

import (
	"sync"
	"unicode"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/axiograph/axiograph/internal/pathdb"
)

// minTokenLen and stopwords match the original tokenizer exactly: very
// short tokens and common English function words are dropped to keep the
// index small and avoid noisy matches (this is a discovery-layer index,
// not part of certified query semantics).
const minTokenLen = 2

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true,
	"for": true, "in": true, "is": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "with": true,
}

// Tokenize splits text on non-alphanumeric boundaries and camelCase
// boundaries, lowercases everything, and drops stopwords and tokens
// shorter than minTokenLen. A token longer than 64 runes is truncated,
// not dropped.
func Tokenize(text string) []string {
	var tokens []string
	var current []rune
	prevWasLower := false

	flush := func() {
		if len(current) == 0 {
			return
		}
		tok := string(current)
		if len(current) >= minTokenLen && !stopwords[tok] {
			tokens = append(tokens, tok)
		}
		current = current[:0]
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if unicode.IsUpper(r) && prevWasLower && len(current) > 0 {
				flush()
			}
			lc := unicode.ToLower(r)
			if len(current) < 64 {
				current = append(current, lc)
			}
			prevWasLower = unicode.IsLower(lc)
			continue
		}
		flush()
		prevWasLower = false
	}
	flush()
	return tokens
}

// InvertedIndex maps a token to the bitmap of entities whose indexed
// attribute value contains it.
type InvertedIndex struct {
	tokenToEntities map[string]*roaring.Bitmap
}

// TextIndexCache holds one InvertedIndex per attribute key, each gated by
// its own generation watermark so a query against attribute "name" never
// waits on a rebuild of the index for attribute "description".
type TextIndexCache struct {
	db  *pathdb.PathDB
	mu  sync.Mutex
	byKey map[pathdb.StrID]*cache[*InvertedIndex]
}

// NewTextIndexCache creates a text index cache bound to db.
func NewTextIndexCache(db *pathdb.PathDB) *TextIndexCache {
	return &TextIndexCache{db: db, byKey: make(map[pathdb.StrID]*cache[*InvertedIndex])}
}

func (tc *TextIndexCache) cacheFor(attrKey pathdb.StrID) *cache[*InvertedIndex] {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	c, ok := tc.byKey[attrKey]
	if !ok {
		c = newCache[*InvertedIndex]()
		tc.byKey[attrKey] = c
	}
	return c
}

func buildInvertedIndex(db *pathdb.PathDB, attrKey pathdb.StrID) *InvertedIndex {
	idx := &InvertedIndex{tokenToEntities: make(map[string]*roaring.Bitmap)}
	for entityID, valueID := range db.Entities.AttrColumn(attrKey) {
		value, ok := db.Interner.Lookup(valueID)
		if !ok {
			continue
		}
		for _, tok := range Tokenize(value) {
			bm, ok := idx.tokenToEntities[tok]
			if !ok {
				bm = roaring.New()
				idx.tokenToEntities[tok] = bm
			}
			bm.Add(uint32(entityID))
		}
	}
	return idx
}

func scanTokens(db *pathdb.PathDB, attrKey pathdb.StrID, tokens []string, all bool) *roaring.Bitmap {
	out := roaring.New()
	want := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		want[t] = true
	}
	for entityID, valueID := range db.Entities.AttrColumn(attrKey) {
		value, ok := db.Interner.Lookup(valueID)
		if !ok {
			continue
		}
		have := make(map[string]bool)
		for _, tok := range Tokenize(value) {
			have[tok] = true
		}
		if all {
			match := true
			for t := range want {
				if !have[t] {
					match = false
					break
				}
			}
			if match {
				out.Add(uint32(entityID))
			}
			continue
		}
		for t := range want {
			if have[t] {
				out.Add(uint32(entityID))
				break
			}
		}
	}
	return out
}

func queryIndex(idx *InvertedIndex, tokens []string, all bool) *roaring.Bitmap {
	if len(tokens) == 0 {
		return roaring.New()
	}
	var out *roaring.Bitmap
	for _, t := range tokens {
		bm, ok := idx.tokenToEntities[t]
		if !ok {
			if all {
				return roaring.New()
			}
			continue
		}
		if out == nil {
			out = bm.Clone()
		} else if all {
			out.And(bm)
		} else {
			out.Or(bm)
		}
	}
	if out == nil {
		return roaring.New()
	}
	return out
}

// QueryAny returns entities whose attrKey value tokenizes to include any
// of tokens.
func (tc *TextIndexCache) QueryAny(attrKey pathdb.StrID, tokens []string) *roaring.Bitmap {
	return tc.query(attrKey, tokens, false)
}

// QueryAll returns entities whose attrKey value tokenizes to include
// every one of tokens.
func (tc *TextIndexCache) QueryAll(attrKey pathdb.StrID, tokens []string) *roaring.Bitmap {
	return tc.query(attrKey, tokens, true)
}

func (tc *TextIndexCache) query(attrKey pathdb.StrID, tokens []string, all bool) *roaring.Bitmap {
	if len(tokens) == 0 {
		return roaring.New()
	}
	c := tc.cacheFor(attrKey)
	return withIndexOrFallback(
		c, tc.db,
		func() *InvertedIndex { return buildInvertedIndex(tc.db, attrKey) },
		func() *roaring.Bitmap { return scanTokens(tc.db, attrKey, tokens, all) },
		func(idx *InvertedIndex) *roaring.Bitmap { return queryIndex(idx, tokens, all) },
	)
}
