package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

func makeCandidate(id string, score float64, messageCount int) *candidate.Candidate {
	messages := make([]candidate.Message, messageCount)
	for i := range messages {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		messages[i] = candidate.Message{
			Role: role,
			Text: fmt.Sprintf("message number %d with enough text to matter", i+1),
		}
	}

	c := candidate.New("user-1", score, messages, "session-1")
	c.ID = id
	return c
}

var _ = Describe("Engine", func() {
	newEngine := func(call func(ctx context.Context, prompt string) (string, error)) *Engine {
		return NewEngine(call, Options{}, zap.NewNop())
	}

	Describe("ProcessOne", func() {
		It("embeds exactly the last ten messages of a long exchange", func() {
			var prompt string
			engine := newEngine(func(_ context.Context, p string) (string, error) {
				prompt = p
				return "The user keeps sessions short and focused every time.", nil
			})

			_, err := engine.ProcessOne(context.Background(), makeCandidate("cand-1", 0.8, 20))
			Expect(err).NotTo(HaveOccurred())

			Expect(prompt).To(ContainSubstring("message number 11"))
			Expect(prompt).To(ContainSubstring("message number 20"))
			Expect(prompt).NotTo(ContainSubstring("message number 10 "))
		})

		It("returns an empty result without a call when the excerpt is too thin", func() {
			called := false
			engine := newEngine(func(_ context.Context, _ string) (string, error) {
				called = true
				return "", nil
			})

			thin := candidate.New("user-1", 0.9, []candidate.Message{{Role: "user", Text: "ok"}}, "")
			thin.ID = "cand-thin"

			result, err := engine.ProcessOne(context.Background(), thin)
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeFalse())
			Expect(result.Implications).To(BeEmpty())
			Expect(result.GrowthVectors).To(BeEmpty())
		})

		It("promotes at most one growth vector per candidate", func() {
			engine := newEngine(func(_ context.Context, _ string) (string, error) {
				return "The user should always get a summary before details.\n" +
					"The user prefers code samples over abstract descriptions.\n" +
					"There is a pattern of reviews happening late in the day.", nil
			})

			result, err := engine.ProcessOne(context.Background(), makeCandidate("cand-2", 0.6, 6))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Implications).To(HaveLen(3))
			Expect(result.GrowthVectors).To(HaveLen(1))

			vec := result.GrowthVectors[0]
			Expect(vec.Implication).To(ContainSubstring("summary before details"))
			Expect(vec.Type).To(Equal(candidate.VectorTypeProcedural))
			Expect(vec.SourceID).To(Equal("cand-2"))
			Expect(vec.Status).To(Equal(candidate.VectorStatusCandidate))
			Expect(vec.Weight).To(BeNumerically(">=", 0.7))
			Expect(vec.Weight).To(BeNumerically("<=", 0.95))
		})

		It("varies the contextual hint with the significance band", func() {
			prompts := map[string]string{}
			for name, score := range map[string]float64{"high": 0.9, "medium": 0.5, "low": 0.1} {
				var captured string
				banded := newEngine(func(_ context.Context, p string) (string, error) {
					captured = p
					return "", nil
				})
				_, err := banded.ProcessOne(context.Background(), makeCandidate("cand-"+name, score, 6))
				Expect(err).NotTo(HaveOccurred())
				prompts[name] = captured
			}

			Expect(prompts["high"]).To(ContainSubstring("highly significant"))
			Expect(prompts["medium"]).To(ContainSubstring("moderate significance"))
			Expect(prompts["low"]).To(ContainSubstring("low significance"))
		})

		It("propagates generation failures", func() {
			engine := newEngine(func(_ context.Context, _ string) (string, error) {
				return "", errors.New("connection refused")
			})

			_, err := engine.ProcessOne(context.Background(), makeCandidate("cand-3", 0.8, 6))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ProcessBatch", func() {
		It("isolates per-item failures and keeps going", func() {
			engine := newEngine(func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "message number 4") {
					return "", errors.New("timeout")
				}
				return "The user expects batches to survive partial failure.", nil
			})

			batch := []*candidate.Candidate{
				makeCandidate("ok-1", 0.9, 3),
				makeCandidate("fails", 0.8, 4),
				makeCandidate("ok-2", 0.7, 3),
			}

			result := engine.ProcessBatch(context.Background(), batch)
			Expect(result.Results).To(HaveLen(2))
			Expect(result.Results[0].CandidateID).To(Equal("ok-1"))
			Expect(result.Results[1].CandidateID).To(Equal("ok-2"))
			Expect(result.Processed).To(ConsistOf("ok-1", "ok-2"))
		})

		It("excludes zero-implication candidates from the processed list", func() {
			engine := newEngine(func(_ context.Context, _ string) (string, error) {
				return "short", nil
			})

			result := engine.ProcessBatch(context.Background(), []*candidate.Candidate{
				makeCandidate("empty", 0.5, 4),
			})
			Expect(result.Results).To(HaveLen(1))
			Expect(result.Processed).To(BeEmpty())
		})
	})
})
