package toolindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	sharedmath "github.com/opsconductor/decisionpipeline/pkg/shared/math"
)

// RedisIndex is a go-redis/v9-backed ToolIndex: each row is stored as a
// hash, a keyword inverted index is maintained as Redis sets per term,
// and embeddings are stored as binary blobs. Redis has no native ANN
// without a module this repo doesn't assume is installed, so candidate
// scoring blends keyword-set intersection size with a client-computed
// cosine pass over the platform-filtered candidate set — still
// O(filtered), not O(catalog).
type RedisIndex struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIndex wraps client. keyPrefix namespaces all keys this index
// touches (e.g. "toolindex").
func NewRedisIndex(client *redis.Client, keyPrefix string) *RedisIndex {
	return &RedisIndex{client: client, keyPrefix: keyPrefix}
}

func (r *RedisIndex) rowKey(id string) string      { return fmt.Sprintf("%s:row:%s", r.keyPrefix, id) }
func (r *RedisIndex) keywordKey(term string) string { return fmt.Sprintf("%s:kw:%s", r.keyPrefix, term) }
func (r *RedisIndex) allIDsKey() string             { return fmt.Sprintf("%s:ids", r.keyPrefix) }

// Put writes row into the index: its hash fields, its keyword postings,
// and membership in the all-ids set.
func (r *RedisIndex) Put(ctx context.Context, row IndexRow) error {
	pipe := r.client.TxPipeline()

	pipe.HSet(ctx, r.rowKey(row.ID), map[string]interface{}{
		"id":        row.ID,
		"name":      row.Name,
		"desc":      row.Desc,
		"tags":      strings.Join(row.Tags, ","),
		"platform":  row.Platform,
		"cost":      strconv.FormatFloat(row.Cost, 'f', -1, 64),
		"embedding": encodeEmbedding(row.Embedding),
	})
	pipe.SAdd(ctx, r.allIDsKey(), row.ID)

	for _, term := range keywordTermsForRow(row) {
		pipe.SAdd(ctx, r.keywordKey(term), row.ID)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func keywordTermsForRow(row IndexRow) []string {
	seen := map[string]struct{}{}
	for _, field := range append([]string{row.Name, row.Desc}, row.Tags...) {
		for _, term := range strings.Fields(strings.ToLower(field)) {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	return terms
}

func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8 : i*8+8]))
	}
	return vec
}

func (r *RedisIndex) Size(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.allIDsKey()).Result()
	return int(n), err
}

func (r *RedisIndex) RetrieveCandidates(ctx context.Context, query string, embedding []float64, platform string, maxRows int) ([]Candidate, error) {
	queryTerms := strings.Fields(strings.ToLower(query))

	candidateIDs, err := r.candidateIDs(ctx, queryTerms)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(candidateIDs))
	for id := range candidateIDs {
		row, ok, err := r.getRow(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if platform != "" && row.Platform != "" && row.Platform != platform {
			continue
		}

		keywordScore := keywordOverlap(queryTerms, row)
		score := keywordScore
		if len(embedding) > 0 && len(row.Embedding) > 0 {
			vectorScore := sharedmath.CosineSimilarity(embedding, row.Embedding)
			score = vectorScore*0.7 + keywordScore*0.3
		}
		candidates = append(candidates, Candidate{Row: row, Score: score})
	}

	sortCandidatesDescending(candidates)

	if maxRows >= 0 && len(candidates) > maxRows {
		candidates = candidates[:maxRows]
	}
	return candidates, nil
}

// candidateIDs unions the posting sets for every query term, falling back
// to the full id set when the query has no recognized terms (so an
// empty or stopword-only query still returns something for the cosine
// pass to rank).
func (r *RedisIndex) candidateIDs(ctx context.Context, queryTerms []string) (map[string]struct{}, error) {
	ids := map[string]struct{}{}

	if len(queryTerms) == 0 {
		all, err := r.client.SMembers(ctx, r.allIDsKey()).Result()
		if err != nil {
			return nil, err
		}
		for _, id := range all {
			ids[id] = struct{}{}
		}
		return ids, nil
	}

	for _, term := range queryTerms {
		members, err := r.client.SMembers(ctx, r.keywordKey(term)).Result()
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			ids[id] = struct{}{}
		}
	}

	if len(ids) == 0 {
		all, err := r.client.SMembers(ctx, r.allIDsKey()).Result()
		if err != nil {
			return nil, err
		}
		for _, id := range all {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (r *RedisIndex) getRow(ctx context.Context, id string) (IndexRow, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.rowKey(id)).Result()
	if err != nil {
		return IndexRow{}, false, err
	}
	if len(fields) == 0 {
		return IndexRow{}, false, nil
	}

	cost, _ := strconv.ParseFloat(fields["cost"], 64)
	var tags []string
	if fields["tags"] != "" {
		tags = strings.Split(fields["tags"], ",")
	}

	return IndexRow{
		ID:        fields["id"],
		Name:      fields["name"],
		Desc:      fields["desc"],
		Tags:      tags,
		Platform:  fields["platform"],
		Cost:      cost,
		Embedding: decodeEmbedding([]byte(fields["embedding"])),
	}, true, nil
}

func sortCandidatesDescending(candidates []Candidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}
