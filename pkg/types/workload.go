package types

// Workload is the scheduler API's view of a running or terminated job, as
// returned by the workload listing endpoint.
type Workload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Project       string `json:"projectName"`
	Type          string `json:"type"`
	Phase         string `json:"phase"`
	Message       string `json:"message,omitempty"`
	NodeName      string `json:"nodeName,omitempty"`
	Image         string `json:"image,omitempty"`
	PodName       string `json:"podName,omitempty"`
	GPUCount      int    `json:"requestedGPUs,omitempty"`
	MemoryRequest string `json:"requestedMemory,omitempty"`
	CPURequest    string `json:"requestedCPU,omitempty"`
}

// FailurePhases are the workload phases the scheduler reports for failed
// jobs. Anything else is treated as healthy by the monitors.
var FailurePhases = map[string]bool{
	"Failed":           true,
	"Error":            true,
	"ImagePullBackOff": true,
	"CrashLoopBackOff": true,
	"OOMKilled":        true,
}
