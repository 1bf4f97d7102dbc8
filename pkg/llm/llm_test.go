package llm

import (
	"context"
	"testing"
)

func TestNew(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("want error without api key")
	}
	if _, err := New(context.Background(), Config{APIKey: "k", Provider: "mystery"}); err == nil {
		t.Fatal("want error for unknown provider")
	}
	gen, err := New(context.Background(), Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if _, ok := gen.(*OpenAI); !ok {
		t.Fatalf("default generator type=%T", gen)
	}
	gen, err = New(context.Background(), Config{APIKey: "k", Provider: "gemini"})
	if err != nil {
		t.Fatalf("gemini provider: %v", err)
	}
	if _, ok := gen.(*Gemini); !ok {
		t.Fatalf("gemini generator type=%T", gen)
	}
}
