package lazyfield

import (
	"fmt"
	"testing"
)

func BenchmarkSourceStackLookup(b *testing.B) {
	sources := make([]Source, 10)
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("source_%d", i)
		values := map[string]any{"theme": name}
		values[fmt.Sprintf("key_%d", i)] = i
		sources[i] = NewSource(name, 100-i, values)
	}
	stack, err := NewSourceStack(sources...)
	if err != nil {
		b.Fatalf("stack: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// The weakest source is the only one carrying the alias, so every
		// lookup walks the whole stack.
		if _, _, ok := stack.Lookup("retries", "key_9"); !ok {
			b.Fatal("lookup missed")
		}
	}
}

func BenchmarkSourceStackEffective(b *testing.B) {
	sources := make([]Source, 10)
	for i := 0; i < 10; i++ {
		sources[i] = NewSource(fmt.Sprintf("source_%d", i), 100-i, map[string]any{
			"theme": i,
			"limits": map[string]any{
				"daily":  100 - i,
				"weekly": 700 - (i * 10),
			},
		})
	}
	stack, err := NewSourceStack(sources...)
	if err != nil {
		b.Fatalf("stack: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		merged := stack.Effective()
		if merged["theme"] != 0 {
			b.Fatalf("unexpected merge result: %v", merged["theme"])
		}
	}
}
