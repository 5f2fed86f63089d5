package vectorstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

func vec(id, implication string) candidate.GrowthVector {
	return candidate.GrowthVector{
		ID:          id,
		Implication: implication,
		Type:        candidate.VectorTypeInsight,
		SourceID:    "cand-1",
		Weight:      0.8,
		Status:      candidate.VectorStatusCandidate,
	}
}

var _ = Describe("Store", func() {
	var store *Store

	BeforeEach(func() {
		store = NewStore(filepath.Join(GinkgoT().TempDir(), "growth_vectors.json"))
	})

	It("treats a missing file as an empty collection", func() {
		vectors, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors).To(BeEmpty())
	})

	It("appends without dropping existing vectors", func() {
		Expect(store.Append([]candidate.GrowthVector{vec("a", "first lesson")})).To(Succeed())
		Expect(store.Append([]candidate.GrowthVector{vec("b", "second lesson")})).To(Succeed())

		vectors, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors).To(HaveLen(2))
		Expect(vectors[0].ID).To(Equal("a"))
		Expect(vectors[1].ID).To(Equal("b"))
	})

	It("writes the candidates-list document shape the validator reads", func() {
		Expect(store.Append([]candidate.GrowthVector{vec("a", "lesson")})).To(Succeed())

		data, err := os.ReadFile(store.Path())
		Expect(err).NotTo(HaveOccurred())

		var doc map[string]json.RawMessage
		Expect(json.Unmarshal(data, &doc)).To(Succeed())
		Expect(doc).To(HaveKey("candidates"))
	})

	It("no-ops on an empty append", func() {
		Expect(store.Append(nil)).To(Succeed())
		_, err := os.Stat(store.Path())
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
