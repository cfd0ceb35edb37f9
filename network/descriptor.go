package network

import "strconv"

// ProcessDescriptor identifies a peer process. Identity is ID: two
// descriptors with equal ids refer to the same logical process.
type ProcessDescriptor struct {
	IP   string `json:"ip"`
	ID   uint64 `json:"id"`
	Port uint64 `json:"port"`
}

func (d ProcessDescriptor) Address() string {
	return d.IP + ":" + strconv.FormatUint(d.Port, 10)
}
