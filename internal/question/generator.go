package question

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"math-race-service/internal/domain"
)

// Generator produces random arithmetic questions. IDs are strictly increasing
// for the lifetime of the generator, which is what makes them usable as epochs.
type Generator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	counter int64
}

var kinds = []string{
	"addition",
	"subtraction",
	"multiplication",
	"division",
	"algebra",
	"squares",
	"modulo",
	"mixed",
}

func NewGenerator() *Generator {
	return NewGeneratorWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGeneratorWithRand allows deterministic question streams in tests.
func NewGeneratorWithRand(rnd *rand.Rand) *Generator {
	return &Generator{rnd: rnd}
}

// Next returns a fresh question of a random kind and difficulty 1..3.
func (g *Generator) Next(_ context.Context) (domain.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++
	kind := kinds[g.rnd.Intn(len(kinds))]
	difficulty := g.rnd.Intn(3) + 1
	return g.build(g.counter, kind, difficulty), nil
}

func (g *Generator) build(id int64, kind string, difficulty int) domain.Question {
	switch kind {
	case "subtraction":
		return g.subtraction(id, difficulty)
	case "multiplication":
		return g.multiplication(id, difficulty)
	case "division":
		return g.division(id, difficulty)
	case "algebra":
		return g.algebra(id, difficulty)
	case "squares":
		return g.squares(id, difficulty)
	case "modulo":
		return g.modulo(id, difficulty)
	case "mixed":
		return g.mixed(id, difficulty)
	default:
		return g.addition(id, difficulty)
	}
}

func (g *Generator) addition(id int64, difficulty int) domain.Question {
	max := difficulty * 50
	a := g.rnd.Intn(max) + 1
	b := g.rnd.Intn(max) + 1
	return question(id, "addition", difficulty, fmt.Sprintf("%d + %d = ?", a, b), float64(a+b))
}

func (g *Generator) subtraction(id int64, difficulty int) domain.Question {
	a := g.rnd.Intn(difficulty*50) + 20
	b := g.rnd.Intn(a-1) + 1
	return question(id, "subtraction", difficulty, fmt.Sprintf("%d - %d = ?", a, b), float64(a-b))
}

func (g *Generator) multiplication(id int64, difficulty int) domain.Question {
	max := difficulty * 12
	a := g.rnd.Intn(max) + 2
	b := g.rnd.Intn(max) + 2
	return question(id, "multiplication", difficulty, fmt.Sprintf("%d × %d = ?", a, b), float64(a*b))
}

func (g *Generator) division(id int64, difficulty int) domain.Question {
	divisor := g.rnd.Intn(difficulty*10) + 2
	quotient := g.rnd.Intn(difficulty*10) + 1
	dividend := divisor * quotient
	return question(id, "division", difficulty, fmt.Sprintf("%d ÷ %d = ?", dividend, divisor), float64(quotient))
}

func (g *Generator) algebra(id int64, difficulty int) domain.Question {
	a := g.rnd.Intn(difficulty*10) + 2
	b := g.rnd.Intn(difficulty*20) + 5
	x := g.rnd.Intn(20) + 1
	result := a*x + b
	return question(id, "algebra", difficulty, fmt.Sprintf("Solve for x: %dx + %d = %d", a, b, result), float64(x))
}

func (g *Generator) squares(id int64, difficulty int) domain.Question {
	base := g.rnd.Intn(difficulty*5) + 2
	return question(id, "squares", difficulty, fmt.Sprintf("What is %d² (%d squared)?", base, base), float64(base*base))
}

func (g *Generator) modulo(id int64, difficulty int) domain.Question {
	a := g.rnd.Intn(difficulty*30) + 10
	b := g.rnd.Intn(10) + 3
	return question(id, "modulo", difficulty, fmt.Sprintf("%d mod %d = ?", a, b), float64(a%b))
}

func (g *Generator) mixed(id int64, difficulty int) domain.Question {
	a := g.rnd.Intn(20) + 2
	b := g.rnd.Intn(10) + 2
	c := g.rnd.Intn(10) + 1

	type op struct {
		prompt string
		answer int
	}
	ops := []op{
		{fmt.Sprintf("(%d + %d) × %d", a, b, c), (a + b) * c},
		{fmt.Sprintf("%d × %d - %d", a, b, c), a*b - c},
		{fmt.Sprintf("(%d) ÷ %d + %d", a*c, c, b), a + b},
	}
	chosen := ops[g.rnd.Intn(len(ops))]
	return question(id, "mixed", difficulty, chosen.prompt+" = ?", float64(chosen.answer))
}

func question(id int64, kind string, difficulty int, prompt string, answer float64) domain.Question {
	return domain.Question{
		ID:         id,
		Kind:       kind,
		Prompt:     prompt,
		Difficulty: difficulty,
		Answer:     answer,
	}
}
