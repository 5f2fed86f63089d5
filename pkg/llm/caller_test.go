package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewCaller", func() {
	It("rejects unknown providers", func() {
		_, err := NewCaller(Config{Provider: "mystery"})
		Expect(err).To(HaveOccurred())
	})

	Context("ollama", func() {
		It("sends the prompt and returns the message content", func() {
			var got ollamaChatRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/chat"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
				json.NewEncoder(w).Encode(map[string]any{
					"message": map[string]string{"content": "Users prefer concise answers."},
					"done":    true,
				})
			}))
			defer server.Close()

			call, err := NewCaller(Config{
				Provider:    "ollama",
				Model:       "llama3.2",
				BaseURL:     server.URL,
				Temperature: 0.3,
				MaxTokens:   256,
			})
			Expect(err).NotTo(HaveOccurred())

			out, err := call(context.Background(), "what matters here?")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Users prefer concise answers."))

			Expect(got.Model).To(Equal("llama3.2"))
			Expect(got.Options.Temperature).To(Equal(0.3))
			Expect(got.Options.NumPredict).To(Equal(256))
			Expect(got.Messages).To(HaveLen(1))
			Expect(got.Messages[0].Content).To(Equal("what matters here?"))
		})

		It("wraps connection failures in ErrUnavailable", func() {
			call, err := NewCaller(Config{
				Provider: "ollama",
				BaseURL:  "http://127.0.0.1:1",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = call(context.Background(), "hello")
			Expect(err).To(MatchError(ErrUnavailable))
		})
	})

	Context("openai", func() {
		It("returns the first choice's content", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))
				json.NewEncoder(w).Encode(map[string]any{
					"choices": []map[string]any{
						{"message": map[string]string{"content": "The user corrects tone often."}},
					},
				})
			}))
			defer server.Close()

			call, err := NewCaller(Config{
				Provider: "openai",
				APIKey:   "test-key",
				BaseURL:  server.URL,
			})
			Expect(err).NotTo(HaveOccurred())

			out, err := call(context.Background(), "prompt")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("The user corrects tone often."))
		})

		It("surfaces API errors with the status code", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			defer server.Close()

			call, err := NewCaller(Config{Provider: "openai", APIKey: "k", BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = call(context.Background(), "prompt")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("429"))
		})
	})

	Context("anthropic", func() {
		It("returns the first content block's text", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/v1/messages"))
				Expect(r.Header.Get("x-api-key")).To(Equal("test-key"))
				json.NewEncoder(w).Encode(map[string]any{
					"content": []map[string]string{{"type": "text", "text": "line one\nline two"}},
				})
			}))
			defer server.Close()

			call, err := NewCaller(Config{
				Provider: "anthropic",
				APIKey:   "test-key",
				BaseURL:  server.URL,
			})
			Expect(err).NotTo(HaveOccurred())

			out, err := call(context.Background(), "prompt")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("line one\nline two"))
		})
	})
})
