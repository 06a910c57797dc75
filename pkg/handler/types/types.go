package types

import "time"

// Info accompanies every data response.
type Info struct {
	DataVersion int64 `json:"dataVersion"`
}

type Response struct {
	Info Info `json:"info"`
	Data any  `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Health    string    `json:"health"`
	Timestamp time.Time `json:"timestamp"`
}

type InfoResponse struct {
	DataVersion int64    `json:"dataVersion"`
	State       string   `json:"state"`
	SampleCount int      `json:"sampleCount"`
	Genes       []string `json:"genes"`
	Cache       any      `json:"cache"`
}
