package keys

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
)

// BuildAll keys every rule concurrently across a bounded worker pool and
// returns keys indexed by target label. Diamond dependencies are safe: the
// factory's caches guarantee each shared rule is fingerprinted once no
// matter how many workers reach it. Individual key computations are
// synchronous and are not cancelled; ctx only stops new work from starting.
func BuildAll(ctx context.Context, factory RuleKeyFactory, targets []rules.BuildRule, parallelism int) (map[string]RuleKey, error) {
	if parallelism <= 0 {
		parallelism = 1
	}

	var mu sync.Mutex
	out := make(map[string]RuleKey, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, rule := range targets {
		rule := rule
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := factory.Build(rule)
			if err != nil {
				return err
			}
			mu.Lock()
			out[rule.Target().String()] = key
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
