package grovecmder_test

import (
	"bytes"
	"os"
	"regexp"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	grovecmder "github.com/papercomputeco/grove/cmd/grove"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

var _ = Describe("NewGroveCmd", func() {
	It("registers every subcommand", func() {
		cmd := grovecmder.NewGroveCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("init", "branch", "artifact", "seq", "join", "config", "version"))
	})

	It("has the global flags", func() {
		cmd := grovecmder.NewGroveCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})
})

var _ = Describe("Grove against a SQLite store", func() {
	var dir string

	// run executes one command line against dir and returns its output with
	// styling stripped.
	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := grovecmder.NewGroveCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--config-dir", dir}, args...))
		err := cmd.Execute()
		return ansi.ReplaceAllString(out.String(), ""), err
	}

	mustRun := func(args ...string) string {
		out, err := run(args...)
		ExpectWithOffset(1, err).NotTo(HaveOccurred(), out)
		return out
	}

	createdID := func(out string) string {
		m := regexp.MustCompile(`Created artifact (\d+)`).FindStringSubmatch(out)
		ExpectWithOffset(1, m).To(HaveLen(2), out)
		_, err := strconv.ParseInt(m[1], 10, 64)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return m[1]
	}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "grove-cmd-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
	})

	It("creates, relates, forks, edits and deletes artifacts", func() {
		folder := createdID(mustRun("artifact", "create", "Docs", "-t", "Folder"))
		req := createdID(mustRun("artifact", "create", "Login",
			"-t", "Requirement",
			"-a", "Priority=high",
			"--parent", folder,
			"-m", "first requirement",
		))

		out := mustRun("artifact", "show", req)
		Expect(out).To(ContainSubstring("Login"))
		Expect(out).To(ContainSubstring("Priority: high"))
		Expect(out).To(ContainSubstring("Default Hierarchical(" + folder + " -> " + req + ")"))

		mustRun("branch", "create", "feature", "--alias", "Feat")
		mustRun("branch", "checkout", "feat")
		mustRun("artifact", "update", req, "--name", "Sign in", "-a", "Priority=low")

		Expect(mustRun("artifact", "show", req)).To(ContainSubstring("Sign in"))
		Expect(mustRun("artifact", "show", req)).To(ContainSubstring("Priority: low"))

		root := mustRun("artifact", "show", req, "-b", "System Root Branch")
		Expect(root).To(ContainSubstring("Login"))
		Expect(root).To(ContainSubstring("Priority: high"))

		list := mustRun("branch", "list")
		Expect(list).To(ContainSubstring("System Root Branch"))
		Expect(list).To(MatchRegexp(`\* +\d+ feature`))
		Expect(list).To(ContainSubstring("aliases: feat"))

		mustRun("artifact", "delete", req)
		Expect(mustRun("artifact", "show", req)).To(ContainSubstring("(deleted)"))

		mustRun("artifact", "delete", req, "--undelete")
		Expect(mustRun("artifact", "show", req)).NotTo(ContainSubstring("(deleted)"))

		mustRun("branch", "checkout", "--clear")
		Expect(mustRun("artifact", "show", req)).To(ContainSubstring("Login"))
	})

	It("copies an artifact across branches", func() {
		req := createdID(mustRun("artifact", "create", "Login", "-t", "Requirement", "-a", "Priority=high", "-a", "Static Id=REQ-1"))
		mustRun("branch", "create", "other")

		out := mustRun("artifact", "copy", req, "--from", "System Root Branch", "-b", "other", "--attr-type", "Static Id")
		Expect(out).To(MatchRegexp(`Copied artifact ` + req + ` from System Root Branch as \d+`))
	})

	It("merges and introduces artifacts from another branch", func() {
		req := createdID(mustRun("artifact", "create", "Login", "-t", "Requirement"))
		mustRun("branch", "create", "feature")
		mustRun("artifact", "update", req, "--name", "Sign in", "-b", "feature")

		out := mustRun("branch", "merge", "feature", "--into", "System Root Branch", "--artifact", req)
		Expect(out).To(ContainSubstring("Created merge branch"))
		Expect(out).To(MatchRegexp(`Committed merge transaction \d+ with 1 artifacts`))
		Expect(mustRun("artifact", "show", req, "-b", "merge feature")).To(ContainSubstring("Sign in"))
		Expect(mustRun("artifact", "show", req)).To(ContainSubstring("Login"))

		out = mustRun("artifact", "introduce", req, "--from", "feature")
		Expect(out).To(ContainSubstring("Introduced artifact " + req + " from feature as " + req))
		Expect(mustRun("artifact", "show", req)).To(ContainSubstring("Sign in"))
	})

	It("refuses edits on an archived branch", func() {
		mustRun("branch", "create", "old")
		mustRun("branch", "archive", "old")

		_, err := run("artifact", "create", "Late", "-b", "old")
		Expect(err).To(HaveOccurred())

		mustRun("branch", "archive", "old", "--restore")
		mustRun("artifact", "create", "Late", "-b", "old")
	})

	It("rejects an empty update", func() {
		req := createdID(mustRun("artifact", "create", "Login", "-t", "Requirement"))
		_, err := run("artifact", "update", req)
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown branches", func() {
		_, err := run("artifact", "show", "1", "-b", "nowhere")
		Expect(err).To(HaveOccurred())
	})

	It("allocates and lists sequence values", func() {
		out := mustRun("seq", "next", "ART_ID", "-n", "3")
		ids := regexp.MustCompile(`(?m)^\d+$`).FindAllString(out, -1)
		Expect(ids).To(HaveLen(3))

		first, _ := strconv.ParseInt(ids[0], 10, 64)
		last, _ := strconv.ParseInt(ids[2], 10, 64)
		Expect(last).To(Equal(first + 2))

		list := mustRun("seq", "list")
		m := regexp.MustCompile(`ART_ID +(\d+)`).FindStringSubmatch(list)
		Expect(m).To(HaveLen(2), list)
		stored, _ := strconv.ParseInt(m[1], 10, 64)
		Expect(stored).To(BeNumerically(">=", last))
	})

	It("reports allocator metrics for the drawn sequence", func() {
		var out, errOut bytes.Buffer
		cmd := grovecmder.NewGroveCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"--config-dir", dir, "seq", "next", "GAMMA_ID", "-n", "4"})
		Expect(cmd.Execute()).To(Succeed())

		report := ansi.ReplaceAllString(errOut.String(), "")
		Expect(report).To(ContainSubstring("cas conflicts: 0"))
		m := regexp.MustCompile(`round trips: (\d+)`).FindStringSubmatch(report)
		Expect(m).To(HaveLen(2), report)
		trips, _ := strconv.ParseInt(m[1], 10, 64)
		Expect(trips).To(BeNumerically(">=", 1))
		Expect(report).To(MatchRegexp(`prefetch: [1-9]\d*`))
	})

	It("initializes a custom sequence once", func() {
		mustRun("seq", "init", "REPORT_ID", "1000")
		Expect(mustRun("seq", "next", "REPORT_ID")).To(ContainSubstring("1001"))

		_, err := run("seq", "init", "REPORT_ID", "5")
		Expect(err).To(HaveOccurred())
	})

	It("sweeps join sets", func() {
		Expect(mustRun("join", "sweep", "--max-age", "1m")).To(ContainSubstring("removed: 0"))
	})

	It("prints the version", func() {
		Expect(mustRun("version")).To(ContainSubstring("Version:"))
	})
})
