package worker

import (
	"testing"
	"time"
)

func TestRateLimiterExhaustsTokens(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d denied with tokens remaining", i)
		}
	}
	if rl.Allow() {
		t.Error("request allowed after bucket drained")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow() {
		t.Fatal("first request denied")
	}
	if rl.Allow() {
		t.Fatal("second request allowed before refill")
	}

	time.Sleep(30 * time.Millisecond)

	if !rl.Allow() {
		t.Error("request denied after refill interval")
	}
}

func TestGetJobTimeout(t *testing.T) {
	p := &Pool{config: DefaultPoolConfig()}

	if got := p.getJobTimeout(JobEmailProcess); got != 2*time.Minute {
		t.Errorf("email.process timeout = %v, want 2m", got)
	}
	if got := p.getJobTimeout("unknown.job"); got != p.config.JobTimeout {
		t.Errorf("unknown job timeout = %v, want default %v", got, p.config.JobTimeout)
	}
}
