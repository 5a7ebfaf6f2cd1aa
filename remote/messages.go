package remote

import "github.com/zeu5/ur-rl-env/types"

// Routes served by Server and used by Client
const (
	routeSession         = "/session"
	routeReset           = "/reset"
	routeStep            = "/step"
	routeObservationSpec = "/spec/observation"
	routeActionSpec      = "/spec/action"
	routeClose           = "/close"
)

type SessionInfo struct {
	ID string `json:"id"`
}

type StepRequest struct {
	Action []float32 `json:"action" binding:"required"`
}

type ObservationSpecResponse struct {
	Specs map[string]types.NativeSpec `json:"specs"`
}

type ActionSpecResponse struct {
	Spec types.NativeSpec `json:"spec"`
}

type errorResponse struct {
	Error string `json:"error"`
}
