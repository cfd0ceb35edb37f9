package configs

import (
	"os"
	"sync"

	"github.com/goccy/go-json"
)

var conLock = sync.Mutex{}

// Deployment is the on-disk test description shared by all processes.
type Deployment struct {
	Coordinator string `json:"coordinator"`
	Processes   int    `json:"processes"`
	Faulty      int    `json:"faulty"`
	Protocol    string `json:"protocol"`
}

// LoadDeployment reads the config file and applies it to the global knobs.
func LoadDeployment() *Deployment {
	conLock.Lock()
	defer conLock.Unlock()
	raw, err := os.ReadFile(ConfigFileLocation)
	if err != nil {
		raw, err = os.ReadFile("." + ConfigFileLocation)
	}
	CheckError(err)

	dep := &Deployment{}
	err = json.Unmarshal(raw, dep)
	CheckError(err)
	if dep.Coordinator != "" {
		CoordinatorServerAddress = dep.Coordinator
	}
	if dep.Processes > 0 {
		NumberOfProcesses = dep.Processes
	}
	if dep.Faulty >= 0 {
		MaxFaulty = dep.Faulty
	}
	if dep.Protocol != "" {
		SelectedProtocol = dep.Protocol
	}
	Assert(NumberOfProcesses > 2*MaxFaulty, "deployment requires n > 2f")
	return dep
}
