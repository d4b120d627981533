// Package providers holds the contract shared by the ad-platform adapters:
// the {data, error} result shape, numeric coercion of loose JSON payloads,
// request pacing and bounded retries.
package providers

import (
	"context"

	"surfscale-engine/internal/campaign"
)

// Result is what every adapter returns. An empty Error means success; on
// failure Data is empty and Error carries a human-readable message.
type Result struct {
	Data  []campaign.Campaign `json:"data"`
	Error string              `json:"error,omitempty"`
}

// OK wraps data in a successful result.
func OK(data []campaign.Campaign) Result {
	if data == nil {
		data = []campaign.Campaign{}
	}
	return Result{Data: data}
}

// Fail converts err into an error result with no data.
func Fail(err error) Result {
	return Result{Data: []campaign.Campaign{}, Error: err.Error()}
}

// Failf is Fail for an already formatted message.
func Failf(msg string) Result {
	return Result{Data: []campaign.Campaign{}, Error: msg}
}

func (r Result) Failed() bool { return r.Error != "" }

// Fetcher is implemented by each source adapter. Implementations must never
// panic or return partial data alongside an error.
type Fetcher interface {
	Source() campaign.Source
	Fetch(ctx context.Context, account campaign.Account, period campaign.Period) Result
}
