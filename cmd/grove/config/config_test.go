package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/grove/cmd/grove/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		subcommands := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "grove-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .grove dir so the manager picks it up
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".grove"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("writes config.toml", func() {
			Expect(run("set", "storage.driver", "postgres")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".grove", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`driver = "postgres"`))
			Expect(out.String()).To(ContainSubstring("storage.driver"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).NotTo(Succeed())
		})

		It("rejects unknown drivers", func() {
			Expect(run("set", "storage.driver", "oracle")).NotTo(Succeed())
		})

		It("rejects invalid uint values", func() {
			Expect(run("set", "sequence.initial_prefetch", "not-a-number")).NotTo(Succeed())
		})

		It("rejects invalid durations", func() {
			Expect(run("set", "joinset.max_age", "soon")).NotTo(Succeed())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "storage.driver")).NotTo(Succeed())
			Expect(run("set")).NotTo(Succeed())
		})
	})

	Describe("get subcommand", func() {
		It("prints a previously set value", func() {
			Expect(run("set", "sequence.initial_prefetch", "32")).To(Succeed())
			out.Reset()

			Expect(run("get", "sequence.initial_prefetch")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("32"))
		})

		It("prints unset keys as not set", func() {
			Expect(run("get", "storage.postgres_dsn")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).NotTo(Succeed())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("lists defaults when no config exists", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`storage.driver`))
			Expect(out.String()).To(ContainSubstring(`"sqlite"`))
		})

		It("lists stored values", func() {
			Expect(run("set", "eventstream.topic", "graph.changes")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"graph.changes"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).NotTo(Succeed())
		})
	})
})
