package queue

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

func testCandidate(score float64) *candidate.Candidate {
	return candidate.New("user-1", score, []candidate.Message{
		{Role: "user", Text: "please remember that I prefer tabs over spaces"},
		{Role: "assistant", Text: "noted, I will use tabs going forward"},
	}, "session-1")
}

var _ = Describe("Store", func() {
	var store *Store

	BeforeEach(func() {
		var err error
		store, err = NewStore(GinkgoT().TempDir(), 0, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("increments the pending count by exactly one", func() {
			before := store.Stats().Pending

			id, err := store.Enqueue(testCandidate(0.5))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
			Expect(store.Stats().Pending).To(Equal(before + 1))
		})

		It("assigns ids sortable by creation order", func() {
			first, err := store.Enqueue(testCandidate(0.5))
			Expect(err).NotTo(HaveOccurred())

			time.Sleep(2 * time.Millisecond)

			second, err := store.Enqueue(testCandidate(0.5))
			Expect(err).NotTo(HaveOccurred())
			Expect(second > first).To(BeTrue())
		})

		It("propagates persistence failures to the caller", func() {
			broken, err := NewStore(GinkgoT().TempDir(), 0, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(os.RemoveAll(broken.pendingDir)).To(Succeed())

			_, err = broken.Enqueue(testCandidate(0.5))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("DequeuePeek", func() {
		It("orders candidates by descending significance", func() {
			for _, score := range []float64{0.9, 0.5, 0.75} {
				_, err := store.Enqueue(testCandidate(score))
				Expect(err).NotTo(HaveOccurred())
			}

			batch, err := store.DequeuePeek(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch).To(HaveLen(3))
			Expect(batch[0].Score).To(Equal(0.9))
			Expect(batch[1].Score).To(Equal(0.75))
			Expect(batch[2].Score).To(Equal(0.5))
		})

		It("respects the limit", func() {
			for range 5 {
				_, err := store.Enqueue(testCandidate(0.5))
				Expect(err).NotTo(HaveOccurred())
			}

			batch, err := store.DequeuePeek(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch).To(HaveLen(2))
		})

		It("does not remove returned candidates", func() {
			_, err := store.Enqueue(testCandidate(0.5))
			Expect(err).NotTo(HaveOccurred())

			_, err = store.DequeuePeek(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Stats().Pending).To(Equal(1))
		})
	})

	Describe("MarkComplete", func() {
		It("relocates the candidate to the processed partition", func() {
			id, err := store.Enqueue(testCandidate(0.8))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.MarkComplete(id, "implications=2")).To(Succeed())

			stats := store.Stats()
			Expect(stats.Pending).To(Equal(0))
			Expect(stats.Processed).To(Equal(1))
		})

		It("attaches the result summary to the archived record", func() {
			id, err := store.Enqueue(testCandidate(0.8))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.MarkComplete(id, "implications=3")).To(Succeed())

			archived, err := readRecord(filepath.Join(store.processedDir, id+recordExt))
			Expect(err).NotTo(HaveOccurred())
			Expect(archived.ResultSummary).To(Equal("implications=3"))
		})

		It("is idempotent on repeated calls", func() {
			id, err := store.Enqueue(testCandidate(0.8))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.MarkComplete(id, "implications=1")).To(Succeed())
			Expect(store.MarkComplete(id, "implications=1")).To(Succeed())

			Expect(store.Stats().Processed).To(Equal(1))
		})

		It("is a no-op for an unknown id", func() {
			Expect(store.MarkComplete("01JUNKJUNKJUNKJUNKJUNKJUNK", "")).To(Succeed())
		})
	})

	Describe("Discard", func() {
		It("removes a pending candidate without archival", func() {
			id, err := store.Enqueue(testCandidate(0.4))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Discard(id)).To(Succeed())

			stats := store.Stats()
			Expect(stats.Pending).To(Equal(0))
			Expect(stats.Processed).To(Equal(0))
		})

		It("is idempotent on a missing id", func() {
			Expect(store.Discard("missing")).To(Succeed())
		})
	})

	Describe("pruning", func() {
		It("caps the pending partition at the configured ceiling", func() {
			capped, err := NewStore(GinkgoT().TempDir(), 3, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			for range 6 {
				_, err := capped.Enqueue(testCandidate(0.5))
				Expect(err).NotTo(HaveOccurred())
				time.Sleep(2 * time.Millisecond)
			}

			Expect(capped.Stats().Pending).To(Equal(3))
		})

		It("retains the most recently written candidates regardless of score", func() {
			capped, err := NewStore(GinkgoT().TempDir(), 2, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			_, err = capped.Enqueue(testCandidate(0.99))
			Expect(err).NotTo(HaveOccurred())
			time.Sleep(5 * time.Millisecond)

			lowA, err := capped.Enqueue(testCandidate(0.1))
			Expect(err).NotTo(HaveOccurred())
			time.Sleep(5 * time.Millisecond)

			lowB, err := capped.Enqueue(testCandidate(0.2))
			Expect(err).NotTo(HaveOccurred())

			remaining, err := capped.DequeuePeek(0)
			Expect(err).NotTo(HaveOccurred())

			ids := []string{remaining[0].ID, remaining[1].ID}
			Expect(ids).To(ConsistOf(lowA, lowB))
		})
	})

	Describe("PruneRetention", func() {
		It("removes archived candidates older than the retention window", func() {
			id, err := store.Enqueue(testCandidate(0.5))
			Expect(err).NotTo(HaveOccurred())
			Expect(store.MarkComplete(id, "")).To(Succeed())

			stale := filepath.Join(store.processedDir, id+recordExt)
			old := time.Now().AddDate(0, 0, -45)
			Expect(os.Chtimes(stale, old, old)).To(Succeed())

			Expect(store.PruneRetention(30)).To(Equal(1))
			Expect(store.Stats().Processed).To(Equal(0))
		})

		It("keeps archived candidates inside the retention window", func() {
			id, err := store.Enqueue(testCandidate(0.5))
			Expect(err).NotTo(HaveOccurred())
			Expect(store.MarkComplete(id, "")).To(Succeed())

			Expect(store.PruneRetention(30)).To(Equal(0))
			Expect(store.Stats().Processed).To(Equal(1))
		})
	})
})
