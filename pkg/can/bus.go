package can

import (
	"fmt"
	"sort"

	candash "github.com/samsamfire/candash"
)

type NewInterfaceFunc func(channel string) (candash.Bus, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	interfaceRegistry[interfaceType] = newInterface
}

// Interfaces returns the registered interface names, sorted
func Interfaces() []string {
	names := make([]string, 0, len(interfaceRegistry))
	for name := range interfaceRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create a new CAN bus with given interface
// Currently supported : socketcan, virtualcan
// The bitrate is configured on the link itself for socketcan and unused by virtualcan.
func NewBus(canInterface string, channel string, bitrate int) (candash.Bus, error) {
	createInterface, ok := interfaceRegistry[canInterface]
	if !ok {
		return nil, fmt.Errorf("unsupported interface : %v, available : %v", canInterface, Interfaces())
	}
	return createInterface(channel)
}
