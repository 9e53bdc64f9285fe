package cache

import (
	"sync"
	"testing"
	"time"

	"k8s.io/utils/ptr"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/clock"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
)

func testBatch() []region.RawMeasurement {
	return []region.RawMeasurement{
		{RegionCode: "us-east-1", CarbonIntensity: 410},
		{RegionCode: "eu-west-1", CarbonIntensity: 290},
	}
}

func TestNew(t *testing.T) {
	c := New(5*time.Minute, time.Hour)
	defer c.Close()
	if c.ttl != 5*time.Minute {
		t.Errorf("Expected ttl to be 5m, got %v", c.ttl)
	}
	if c.maxAge != time.Hour {
		t.Errorf("Expected maxAge to be 1h, got %v", c.maxAge)
	}

	// Zero durations fall back to defaults
	d := New(0, 0)
	defer d.Close()
	if d.ttl != 30*time.Second {
		t.Errorf("Expected default ttl to be 30s, got %v", d.ttl)
	}
	if d.maxAge != 5*time.Minute {
		t.Errorf("Expected default maxAge to be 5m, got %v", d.maxAge)
	}

	// maxAge never drops below ttl
	e := New(time.Hour, time.Minute)
	defer e.Close()
	if e.maxAge != time.Hour {
		t.Errorf("Expected maxAge raised to ttl, got %v", e.maxAge)
	}
}

func TestSetGet(t *testing.T) {
	c := New(5*time.Minute, time.Hour)
	defer c.Close()

	if _, found := c.Get("regions"); found {
		t.Error("Get() returned true for non-existent key")
	}

	c.Set("regions", testBatch())
	if c.Size() != 1 {
		t.Errorf("Expected cache size 1 after Set(), got %d", c.Size())
	}

	batch, found := c.Get("regions")
	if !found {
		t.Fatal("Get() returned false for existing key")
	}
	if len(batch) != 2 || batch[1].RegionCode != "eu-west-1" {
		t.Errorf("unexpected batch: %+v", batch)
	}

	hits, misses := c.GetMetrics()
	if hits != 1 || misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d hits and %d misses", hits, misses)
	}
}

func TestBatchesAreCopied(t *testing.T) {
	c := New(5*time.Minute, time.Hour)
	defer c.Close()

	original := testBatch()
	c.Set("regions", original)
	original[0].CarbonIntensity = 1

	got, _ := c.Get("regions")
	if got[0].CarbonIntensity != 410 {
		t.Errorf("mutating the stored slice leaked into the cache: %v", got[0].CarbonIntensity)
	}

	got[1].RegionCode = "mutated"
	again, _ := c.Get("regions")
	if again[1].RegionCode != "eu-west-1" {
		t.Errorf("mutating a returned slice leaked into the cache: %v", again[1].RegionCode)
	}
}

func TestOptionalFieldsAreCopied(t *testing.T) {
	c := New(5*time.Minute, time.Hour)
	defer c.Close()

	original := []region.RawMeasurement{{
		RegionCode:       "eu-west-2",
		CarbonIntensity:  180,
		RenewablePercent: ptr.To(41.0),
		EstimatedLatency: ptr.To(35.0),
	}}
	c.Set("regions", original)
	*original[0].RenewablePercent = 0
	*original[0].EstimatedLatency = 0

	got, _ := c.Get("regions")
	if *got[0].RenewablePercent != 41 || *got[0].EstimatedLatency != 35 {
		t.Errorf("caller writes through stored pointers leaked into the cache: %v %v",
			*got[0].RenewablePercent, *got[0].EstimatedLatency)
	}

	*got[0].EstimatedLatency = 999
	again, _ := c.Get("regions")
	if *again[0].EstimatedLatency != 35 {
		t.Errorf("writes through returned pointers leaked into the cache: %v", *again[0].EstimatedLatency)
	}
	if again[0].RenewablePercent == got[0].RenewablePercent {
		t.Error("expected each Get to return fresh pointers")
	}
}

func TestTTLExpiry(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := NewWithClock(time.Minute, time.Hour, mock)
	defer c.Close()

	c.Set("regions", testBatch())

	mock.Advance(30 * time.Second)
	if _, found := c.Get("regions"); !found {
		t.Error("Expected fresh entry before TTL")
	}

	mock.Advance(time.Minute)
	if _, found := c.Get("regions"); found {
		t.Error("Expected stale entry after TTL")
	}

	// stale entries are kept until maxAge
	c.removeExpired()
	if c.Size() != 1 {
		t.Errorf("Expected stale entry retained until maxAge, size=%d", c.Size())
	}

	mock.Advance(2 * time.Hour)
	c.removeExpired()
	if c.Size() != 0 {
		t.Errorf("Expected entry removed after maxAge, size=%d", c.Size())
	}
}

func TestClear(t *testing.T) {
	c := New(time.Minute, time.Hour)
	defer c.Close()

	c.Set("a", testBatch())
	c.Set("b", nil)
	if c.Size() != 2 {
		t.Fatalf("Expected size 2, got %d", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Expected empty cache after Clear(), got %d", c.Size())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, time.Hour)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("regions", testBatch())
		}()
		go func() {
			defer wg.Done()
			c.Get("regions")
		}()
	}
	wg.Wait()

	hits, misses := c.GetMetrics()
	if hits+misses != 20 {
		t.Errorf("Expected 20 lookups recorded, got %d", hits+misses)
	}
}
