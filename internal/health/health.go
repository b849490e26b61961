// Package health runs readiness checks against the process's dependencies.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Check probes one dependency.
type Check func(ctx context.Context) CheckResult

// CheckAll runs checks concurrently and keeps their order in the result.
func CheckAll(ctx context.Context, checks ...Check) HealthStatus {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			results[i] = c(ctx)
		}(i, c)
	}
	wg.Wait()

	allOK := true
	for _, c := range results {
		if !c.OK {
			allOK = false
		}
	}
	return HealthStatus{OK: allOK, Checks: results, CheckedAt: time.Now().UTC()}
}

// Pinger is anything with a cheap liveness probe, like a store.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Ping(name string, p Pinger) Check {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		result := CheckResult{Name: name}
		if err := p.Ping(ctx); err != nil {
			result.Error = err.Error()
		} else {
			result.OK = true
		}
		result.Latency = time.Since(start)
		return result
	}
}

// Credential fails when value is empty, naming env as the variable to set.
func Credential(name, env, value string) Check {
	return func(context.Context) CheckResult {
		if value == "" {
			return CheckResult{Name: name, Error: env + " not set"}
		}
		return CheckResult{Name: name, OK: true}
	}
}

// Deepgram lists projects, which any valid key may do.
func Deepgram(client *http.Client, baseURL, apiKey string) Check {
	if baseURL == "" {
		baseURL = "https://api.deepgram.com"
	}
	return httpCheck("deepgram", client, baseURL+"/v1/projects", apiKey, func(req *http.Request, key string) {
		req.Header.Set("Authorization", "Token "+key)
	}, "DEEPGRAM_API_KEY")
}

// ElevenLabs lists models. TTS-only keys are allowed to do that.
func ElevenLabs(client *http.Client, baseURL, apiKey string) Check {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	return httpCheck("elevenlabs", client, baseURL+"/v1/models", apiKey, func(req *http.Request, key string) {
		req.Header.Set("xi-api-key", key)
	}, "ELEVENLABS_API_KEY")
}

func httpCheck(name string, client *http.Client, url, key string, authorize func(*http.Request, string), env string) Check {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		result := CheckResult{Name: name}

		if key == "" {
			result.Error = env + " not set"
			result.Latency = time.Since(start)
			return result
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			result.Error = fmt.Sprintf("request build failed: %v", err)
			result.Latency = time.Since(start)
			return result
		}
		authorize(req, key)

		resp, err := client.Do(req)
		if err != nil {
			result.Error = fmt.Sprintf("request failed: %v", err)
			result.Latency = time.Since(start)
			return result
		}
		defer resp.Body.Close()

		result.Latency = time.Since(start)

		if resp.StatusCode == http.StatusUnauthorized {
			result.Error = "invalid API key (401)"
			return result
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
			return result
		}
		io.Copy(io.Discard, resp.Body)

		result.OK = true
		return result
	}
}
