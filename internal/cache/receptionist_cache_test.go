package cache

import (
	"testing"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
)

func TestCachePutGet(t *testing.T) {
	c := NewReceptionistCache(time.Minute)

	c.Put(&domain.Receptionist{ID: "r1", Slug: "john", Name: "John", IsActive: true})

	got, ok := c.Get("john")
	if !ok {
		t.Fatal("Get(john) miss, want hit")
	}
	if got.Name != "John" {
		t.Errorf("Get(john).Name = %q, want John", got.Name)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) hit, want miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewReceptionistCache(time.Minute)
	now := time.Now()
	c.clock = func() time.Time { return now }

	c.Put(&domain.Receptionist{ID: "r1", Slug: "john"})

	if _, ok := c.Get("john"); !ok {
		t.Fatal("Get(john) miss before expiry")
	}

	now = now.Add(time.Minute + time.Second)
	if _, ok := c.Get("john"); ok {
		t.Error("Get(john) hit after expiry, want miss")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewReceptionistCache(time.Minute)
	c.Put(&domain.Receptionist{ID: "r1", Slug: "john"})
	c.Put(&domain.Receptionist{ID: "r2", Slug: "mary"})

	c.Invalidate("john")

	if _, ok := c.Get("john"); ok {
		t.Error("Get(john) hit after invalidation")
	}
	if _, ok := c.Get("mary"); !ok {
		t.Error("Get(mary) miss, invalidation must not touch other slugs")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	// Invalidating an absent slug is a no-op.
	c.Invalidate("missing")
}

func TestCacheReturnsIsolatedCopies(t *testing.T) {
	c := NewReceptionistCache(time.Minute)

	original := &domain.Receptionist{
		ID:   "r1",
		Slug: "john",
		Name: "John",
		AgentConfig: &domain.AgentConfigSnapshot{
			TTS: domain.TTSSettings{VoiceID: "v1"},
		},
	}
	c.Put(original)

	original.Name = "mutated"
	original.AgentConfig.TTS.VoiceID = "mutated"

	first, ok := c.Get("john")
	if !ok {
		t.Fatal("Get(john) miss")
	}
	if first.Name != "John" || first.AgentConfig.TTS.VoiceID != "v1" {
		t.Errorf("cached record shares state with caller's pointer: %+v", first)
	}

	first.Name = "also mutated"
	second, _ := c.Get("john")
	if second.Name != "John" {
		t.Error("returned record shares state with cache entry")
	}
}
