// Package names generates candidate room names from a word list.
package names

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

const Separator = "."

type Option func(*Generator)

// WithSource replaces the random source, mostly so tests can seed it.
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		g.rng = rand.New(src)
	}
}

// Generator draws two words independently, with replacement. It performs no
// uniqueness check; the store does that.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	words []string
}

func New(words []string, opts ...Option) (*Generator, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}

	g := &Generator{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		words: append([]string(nil), words...),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Default returns a generator over the Fruits list.
func Default() *Generator {
	g, _ := New(Fruits)
	return g
}

func (g *Generator) Next() string {
	g.mu.Lock()
	first := g.words[g.rng.Intn(len(g.words))]
	second := g.words[g.rng.Intn(len(g.words))]
	g.mu.Unlock()

	return first + Separator + second
}

// Space is the number of distinct names the generator can produce.
func (g *Generator) Space() int {
	return len(g.words) * len(g.words)
}

// Load reads a word list with one word per line. Blank lines and lines
// starting with # are skipped.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, Separator) {
			return nil, fmt.Errorf("word %q contains separator %q", line, Separator)
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read word list %s: %w", path, err)
	}
	return words, nil
}
