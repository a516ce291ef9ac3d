package slotpool_test

import (
	"fmt"

	"github.com/SkynetNext/flow-gateway/internal/slotpool"
)

func ExamplePool() {
	p := slotpool.MustNew[string, int](2, slotpool.DefaultLoadFactor, slotpool.StringHasher,
		slotpool.WithEvictHook(func(k string, v *int) {
			fmt.Printf("evicted %s=%d\n", k, *v)
		}),
	)

	*p.Acquire("a").Value() = 1
	*p.Acquire("b").Value() = 2
	p.Acquire("a") // a becomes most recently used
	*p.Acquire("c").Value() = 3

	for k, v := range p.All() {
		fmt.Printf("%s=%d\n", k, *v)
	}
	fmt.Println(p.Len(), p.Available())
	// Output:
	// evicted b=2
	// a=1
	// c=3
	// 2 0
}

func ExamplePool_Release() {
	p := slotpool.MustNew[int64, string](4, 1, slotpool.Int64Hasher)

	s := p.Acquire(7)
	*s.Value() = "session 7"
	p.Release(s)

	_, ok := p.Find(7)
	fmt.Println(ok, p.Available())
	// Output:
	// false 4
}
