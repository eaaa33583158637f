package option

import (
	"fmt"
	"strings"

	"go-fleetreport/internal/features/constraint"
)

// DefaultStatusCodes is the status code table offered when no label table
// is configured.
func DefaultStatusCodes() map[int]string {
	return map[int]string{
		0xF010: "Initialized",
		0xF020: "Location",
		0xF111: "Start",
		0xF112: "EnRoute",
		0xF113: "Stop",
		0xF114: "Dormant",
		0xF11C: "Moving",
		0xF210: "Arrive",
		0xF230: "Depart",
		0xF401: "Ignition_On",
		0xF403: "Ignition_Off",
	}
}

// ParseStatusCodeTable reads comma separated code=description pairs such as
// "0xF020=Location,61713=Start". A pair without a description maps to "".
func ParseStatusCodeTable(s string) (map[int]string, error) {
	table := make(map[int]string)
	for _, pair := range strings.Split(s, ",") {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		code, desc, _ := strings.Cut(pair, "=")
		codes, err := constraint.ParseStatusCodes(strings.TrimSpace(code))
		if err != nil {
			return nil, err
		}
		if len(codes) != 1 {
			return nil, fmt.Errorf("status code entry %q needs exactly one code", pair)
		}
		table[codes[0]] = strings.TrimSpace(desc)
	}
	return table, nil
}
