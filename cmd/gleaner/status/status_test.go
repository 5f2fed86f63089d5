package statuscmder_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	statuscmder "github.com/gleanerhq/gleaner/cmd/gleaner/status"
)

var _ = Describe("NewStatusCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := statuscmder.NewStatusCmd()
		Expect(cmd.Use).To(Equal("status"))
	})

	It("accepts zero arguments", func() {
		cmd := statuscmder.NewStatusCmd()
		err := cmd.Args(cmd, []string{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects any arguments", func() {
		cmd := statuscmder.NewStatusCmd()
		err := cmd.Args(cmd, []string{"extra"})
		Expect(err).To(HaveOccurred())
	})

	It("requires the agent flag", func() {
		cmd := statuscmder.NewStatusCmd()
		cmd.SetArgs([]string{})
		err := cmd.Execute()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Status command execution", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	It("renders state and candidates from the API", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/agents/helper/state":
				json.NewEncoder(w).Encode(map[string]any{
					"agent_id":    "helper",
					"pending":     1,
					"processed":   3,
					"busy":        false,
					"cooldowns":   2,
					"vector_path": "/tmp/growth_vectors.json",
				})
			case "/agents/helper/candidates":
				json.NewEncoder(w).Encode([]map[string]any{
					{
						"id":            "01JGR0M9J0000000000000000A",
						"created_at":    time.Now().Add(-time.Minute),
						"score":         0.9,
						"message_count": 4,
					},
				})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))

		cmd := statuscmder.NewStatusCmd()
		cmd.SetArgs([]string{"--agent", "helper", "--api-target", server.URL})
		Expect(cmd.Execute()).To(Succeed())
	})

	It("surfaces API errors", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid agent scope"})
		}))

		cmd := statuscmder.NewStatusCmd()
		cmd.SetArgs([]string{"--agent", "bad", "--api-target", server.URL})
		err := cmd.Execute()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("invalid agent scope"))
	})
})
