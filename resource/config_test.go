package resource_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ttasched/resource"
)

var _ = Describe("SchedulerConfig", func() {
	Describe("DefaultSchedulerConfig", func() {
		It("should disable modulo scheduling and honour annotations", func() {
			config := resource.DefaultSchedulerConfig()

			Expect(config.InitiationInterval).To(Equal(0))
			Expect(config.Conservative).To(BeFalse())
			Expect(config.RespectUnitAnnotations).To(BeTrue())
			Expect(config.MaxCycles).To(Equal(1024))
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Validate", func() {
		It("should reject a negative initiation interval", func() {
			config := resource.DefaultSchedulerConfig()
			config.InitiationInterval = -1

			Expect(config.Validate()).To(MatchError(ContainSubstring("initiation_interval")))
		})

		It("should reject a zero cycle bound", func() {
			config := resource.DefaultSchedulerConfig()
			config.MaxCycles = 0

			Expect(config.Validate()).To(MatchError(ContainSubstring("max_cycles")))
		})
	})

	Describe("Clone", func() {
		It("should not share state with the original", func() {
			original := resource.DefaultSchedulerConfig()
			clone := original.Clone()

			clone.InitiationInterval = 4
			clone.Conservative = true

			Expect(original.InitiationInterval).To(Equal(0))
			Expect(original.Conservative).To(BeFalse())
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "sched-config-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := resource.DefaultSchedulerConfig()
			original.InitiationInterval = 3
			original.Conservative = true

			path := filepath.Join(tempDir, "sched.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := resource.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(tempDir, "partial.json")
			err := os.WriteFile(path, []byte(`{"initiation_interval": 2}`), 0644)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := resource.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.InitiationInterval).To(Equal(2))
			Expect(loaded.RespectUnitAnnotations).To(BeTrue())
			Expect(loaded.MaxCycles).To(Equal(1024))
		})

		It("should return error for non-existent file", func() {
			_, err := resource.LoadConfig("/nonexistent/path/sched.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = resource.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
