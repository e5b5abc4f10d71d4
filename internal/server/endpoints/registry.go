package endpoints

import "github.com/formscan/formscan/internal/api"

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Extraction endpoints
		&ExtractFieldsEndpoint{},
		&ScanEndpoint{},

		// Job endpoints
		&GetJobEndpoint{},
		&ListJobsEndpoint{},
	}
}
