package optim

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if one := Linspace(3, 9, 1); len(one) != 1 || one[0] != 3 {
		t.Errorf("single point = %v", one)
	}
}

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch([]string{"a", "b"}, [][]float64{Linspace(-2, 2, 5), Linspace(0, 4, 5)})
	if g.Size() != 25 {
		t.Fatalf("size = %d, want 25", g.Size())
	}

	calls := 0
	objective := func(_ context.Context, p map[string]float64) (float64, error) {
		calls++
		return (p["a"]-1)*(p["a"]-1) + (p["b"]-3)*(p["b"]-3), nil
	}

	best, score, trials, err := g.Search(context.Background(), objective)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 25 || len(trials) != 25 {
		t.Errorf("calls = %d, trials = %d", calls, len(trials))
	}
	if best["a"] != 1 || best["b"] != 3 || score != 0 {
		t.Errorf("best = %v score %v", best, score)
	}

	ranked := Ranked(trials)
	if ranked[0].Score != 0 {
		t.Errorf("ranked[0] = %v", ranked[0])
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score < ranked[i-1].Score {
			t.Fatalf("ranked out of order at %d", i)
		}
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	g := NewGridSearch([]string{"x"}, [][]float64{{0, 1, 2, 3}})
	boom := errors.New("diverged")
	objective := func(_ context.Context, p map[string]float64) (float64, error) {
		switch p["x"] {
		case 0:
			return 0, boom
		case 1:
			return math.NaN(), nil
		}
		return p["x"], nil
	}

	best, score, trials, err := g.Search(context.Background(), objective)
	if err != nil {
		t.Fatal(err)
	}
	if best["x"] != 2 || score != 2 {
		t.Errorf("best = %v score %v", best, score)
	}
	if len(Ranked(trials)) != 2 {
		t.Errorf("ranked = %d, want 2", len(Ranked(trials)))
	}
}

func TestGridSearchErrors(t *testing.T) {
	ok := func(context.Context, map[string]float64) (float64, error) { return 0, nil }

	if _, _, _, err := NewGridSearch([]string{"x"}, nil).Search(context.Background(), ok); err == nil {
		t.Error("mismatched names and ranges accepted")
	}
	if _, _, _, err := NewGridSearch([]string{"x"}, [][]float64{{}}).Search(context.Background(), ok); err == nil {
		t.Error("empty grid accepted")
	}

	fail := func(context.Context, map[string]float64) (float64, error) { return 0, errors.New("no") }
	if _, _, _, err := NewGridSearch([]string{"x"}, [][]float64{{1}}).Search(context.Background(), fail); err == nil {
		t.Error("all-failing grid returned no error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := NewGridSearch([]string{"x"}, [][]float64{{1, 2}}).Search(ctx, ok); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}
