package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

type fakeWeatherSource struct {
	calls   int
	fetchFn func(ctx context.Context) (*domain.Weather, error)
}

func (f *fakeWeatherSource) Fetch(ctx context.Context) (*domain.Weather, error) {
	f.calls++
	return f.fetchFn(ctx)
}

func TestCurrent_ReusesCachedValueWithinTTL(t *testing.T) {
	source := &fakeWeatherSource{
		fetchFn: func(ctx context.Context) (*domain.Weather, error) {
			return &domain.Weather{TemperatureC: 14.5, Condition: "cloudy"}, nil
		},
	}
	svc := NewWeatherService(source, nil, nil, 10*time.Minute)

	for i := 0; i < 5; i++ {
		w, err := svc.Current(context.Background())
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if w.TemperatureC != 14.5 {
			t.Fatalf("unexpected reading: %+v", w)
		}
	}
	if source.calls != 1 {
		t.Errorf("expected a single upstream fetch within the TTL, got %d", source.calls)
	}
}

func TestCurrent_RefetchesAfterTTL(t *testing.T) {
	source := &fakeWeatherSource{
		fetchFn: func(ctx context.Context) (*domain.Weather, error) {
			return &domain.Weather{TemperatureC: 14.5}, nil
		},
	}
	svc := NewWeatherService(source, nil, nil, 10*time.Minute)

	base := time.Now()
	svc.now = func() time.Time { return base }

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	svc.now = func() time.Time { return base.Add(11 * time.Minute) }
	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	if source.calls != 2 {
		t.Errorf("expected a refetch after the TTL expired, got %d calls", source.calls)
	}
}

func TestCurrent_ReturnsStaleValueOnUpstreamFailure(t *testing.T) {
	healthy := true
	source := &fakeWeatherSource{
		fetchFn: func(ctx context.Context) (*domain.Weather, error) {
			if !healthy {
				return nil, errors.New("upstream timeout")
			}
			return &domain.Weather{TemperatureC: 14.5, Condition: "cloudy"}, nil
		},
	}
	svc := NewWeatherService(source, nil, nil, 10*time.Minute)

	base := time.Now()
	svc.now = func() time.Time { return base }

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	healthy = false
	svc.now = func() time.Time { return base.Add(11 * time.Minute) }

	w, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("expected stale value instead of error, got %v", err)
	}
	if w.TemperatureC != 14.5 {
		t.Errorf("expected the previous reading, got %+v", w)
	}
}

func TestCurrent_ErrorsWhenNoValueWasEverFetched(t *testing.T) {
	source := &fakeWeatherSource{
		fetchFn: func(ctx context.Context) (*domain.Weather, error) {
			return nil, errors.New("upstream timeout")
		},
	}
	svc := NewWeatherService(source, nil, nil, 10*time.Minute)

	if _, err := svc.Current(context.Background()); err == nil {
		t.Fatal("expected an error with no cached value to fall back on")
	}
}
