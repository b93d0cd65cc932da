// Package jobs holds the sample workloads run by the tandem command. A job
// reads its raw input and writes a formatted answer; Bind turns it into a
// task for the pool.
package jobs

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/alitto/tandem"
)

// Handler computes an answer from input and writes it to w.
type Handler func(input string, w io.Writer)

// Strategy is one way of computing a job's answer.
type Strategy struct {
	Name    string
	Handler Handler
}

// Job is a named workload with one or more interchangeable strategies.
// The first strategy is the reference one.
type Job struct {
	Name         string
	DefaultInput string
	Strategies   []Strategy
}

var registry = map[string]Job{
	"wordcount": {
		Name:         "wordcount",
		DefaultInput: "the quick brown fox\njumps over\nthe lazy dog\n",
		Strategies: []Strategy{
			{Name: "fields", Handler: wordCount},
		},
	},
	"checksum": {
		Name:         "checksum",
		DefaultInput: strings.Repeat("tandem", 100000),
		Strategies: []Strategy{
			{Name: "sha256", Handler: checksum},
		},
	},
	"primes": {
		Name:         "primes",
		DefaultInput: "2000000",
		Strategies: []Strategy{
			{Name: "sieve", Handler: primesSieve},
			{Name: "trial", Handler: primesTrial},
		},
	},
}

// Names returns the registered job names in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the job registered under name.
func Lookup(name string) (Job, bool) {
	job, ok := registry[name]
	return job, ok
}

// Task returns a task running the job's reference strategy on input.
func (j Job) Task(bins *tandem.Bins, input string) tandem.Task[string] {
	return Bind(bins, j.Name, j.Strategies[0].Handler, input)
}

// Alternatives returns one task per strategy, all computing the same answer.
func (j Job) Alternatives(bins *tandem.Bins, input string) []tandem.Task[string] {
	tasks := make([]tandem.Task[string], len(j.Strategies))
	for i, strategy := range j.Strategies {
		tasks[i] = Bind(bins, j.Name+"/"+strategy.Name, strategy.Handler, input)
	}
	return tasks
}

// Bind returns a task that runs handler on input and yields its output
// prefixed with label. The handler's running time is added to the bin named
// label.
func Bind(bins *tandem.Bins, label string, handler Handler, input string) tandem.Task[string] {
	return func() string {
		var buf bytes.Buffer
		tandem.TimeSpanToBin(bins, label, func() struct{} {
			handler(input, &buf)
			return struct{}{}
		})
		return label + ": " + strings.TrimRight(buf.String(), "\n")
	}
}

// LoadInput reads the input of job from dir/<job name>. A missing file yields
// the job's default input.
func LoadInput(dir string, job Job) (string, error) {
	contents, err := os.ReadFile(filepath.Join(dir, job.Name))
	if errors.Is(err, fs.ErrNotExist) {
		return job.DefaultInput, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading input of %s: %w", job.Name, err)
	}
	return string(contents), nil
}

func wordCount(input string, w io.Writer) {
	lines := strings.Count(input, "\n")
	if len(input) > 0 && !strings.HasSuffix(input, "\n") {
		lines++
	}
	fmt.Fprintf(w, "%d lines, %d words, %d bytes", lines, len(strings.Fields(input)), len(input))
}

func checksum(input string, w io.Writer) {
	fmt.Fprintf(w, "%x", sha256.Sum256([]byte(input)))
}

func parseLimit(input string, w io.Writer) (int, bool) {
	limit, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || limit < 0 {
		fmt.Fprintf(w, "invalid limit %q", strings.TrimSpace(input))
		return 0, false
	}
	return limit, true
}

func primesSieve(input string, w io.Writer) {
	limit, ok := parseLimit(input, w)
	if !ok {
		return
	}

	composite := make([]bool, limit+1)
	count := 0
	for i := 2; i <= limit; i++ {
		if composite[i] {
			continue
		}
		count++
		for j := i * i; j <= limit; j += i {
			composite[j] = true
		}
	}

	fmt.Fprintf(w, "%d primes up to %d", count, limit)
}

func primesTrial(input string, w io.Writer) {
	limit, ok := parseLimit(input, w)
	if !ok {
		return
	}

	count := 0
	for n := 2; n <= limit; n++ {
		prime := true
		for d := 2; d*d <= n; d++ {
			if n%d == 0 {
				prime = false
				break
			}
		}
		if prime {
			count++
		}
	}

	fmt.Fprintf(w, "%d primes up to %d", count, limit)
}
