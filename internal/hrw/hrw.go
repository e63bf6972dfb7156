// Package hrw implements rendezvous (highest random weight) hashing over
// node ids. For a given key every caller computes the same ranking, and
// removing a node only moves the keys that node was ranked first for.
package hrw

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Rank returns nodes ordered by descending score for key. The input slice is
// not modified.
func Rank(key string, nodes []string, seed string) []string {
	type scored struct {
		id    string
		score uint64
	}
	keyB := []byte(key)
	all := make([]scored, len(nodes))
	for i, id := range nodes {
		all[i] = scored{id: id, score: Score(keyB, id, seed)}
	}
	sort.SliceStable(all, func(a, b int) bool {
		if all[a].score == all[b].score {
			return all[a].id < all[b].id
		}
		return all[a].score > all[b].score
	})

	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.id
	}
	return out
}

// TopK returns the k best ranked nodes for key (fewer if len(nodes) < k).
func TopK(key string, nodes []string, k int, seed string) []string {
	if k <= 0 || len(nodes) == 0 {
		return nil
	}
	ranked := Rank(key, nodes, seed)
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}

// Score is the 64-bit blake2b weight of nodeID for key. seed separates
// independent rankings over the same node ids.
func Score(key []byte, nodeID string, seed string) uint64 {
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write(key)
	h.Write([]byte{0})
	h.Write([]byte(nodeID))
	return binary.BigEndian.Uint64(h.Sum(nil))
}
