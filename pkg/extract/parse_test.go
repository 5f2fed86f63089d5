package extract

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseImplications", func() {
	opts := Options{
		MinLength:      20,
		MaxCount:       3,
		FilterPatterns: []string{"here are", "implications:"},
	}

	It("drops lines shorter than the minimum length", func() {
		response := "short\nThe user prefers terse answers over long explanations."
		Expect(parseImplications(response, opts)).To(Equal([]string{
			"The user prefers terse answers over long explanations.",
		}))
	})

	It("drops lines starting with a filter prefix, case-insensitively", func() {
		response := "Here are the implications I found in the exchange:\n" +
			"IMPLICATIONS: a meta header that should disappear\n" +
			"The user corrects terminology mistakes immediately."
		Expect(parseImplications(response, opts)).To(Equal([]string{
			"The user corrects terminology mistakes immediately.",
		}))
	})

	It("drops lines opening with bracket characters", func() {
		response := "[note] stray formatting artifact from the model\n" +
			"{\"implication\": \"accidental json that slipped through\"}\n" +
			"The user always reviews diffs before approving them."
		Expect(parseImplications(response, opts)).To(Equal([]string{
			"The user always reviews diffs before approving them.",
		}))
	})

	It("preserves original order and caps at the maximum count", func() {
		response := "First durable lesson about the user's workflow habits.\n" +
			"Second durable lesson about the user's review style.\n" +
			"Third durable lesson about the user's tooling choices.\n" +
			"Fourth lesson that exceeds the configured ceiling here."
		Expect(parseImplications(response, opts)).To(Equal([]string{
			"First durable lesson about the user's workflow habits.",
			"Second durable lesson about the user's review style.",
			"Third durable lesson about the user's tooling choices.",
		}))
	})

	It("returns nothing when every line is filtered", func() {
		response := "here are some thoughts\nshort\n[bracketed artifact that is long enough]"
		Expect(parseImplications(response, opts)).To(BeEmpty())
	})
})
