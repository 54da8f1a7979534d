package main

import (
	"fmt"
	"strings"

	"netbinder.io/netbinder/internal/domain"
)

// parseNIC parses one --nic value: net-id=ID[,v4-fixed-ip=IP|,v6-fixed-ip=IP]
// or port-id=ID.
func parseNIC(raw string) (domain.RequestedNetwork, error) {
	var req domain.RequestedNetwork
	if strings.TrimSpace(raw) == "" {
		return req, fmt.Errorf("empty --nic value")
	}
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || value == "" {
			return req, fmt.Errorf("malformed --nic %q: expected key=value, got %q", raw, part)
		}
		switch key {
		case "net-id":
			req.NetworkID = value
		case "port-id":
			req.PortID = value
		case "v4-fixed-ip", "v6-fixed-ip":
			if req.FixedIP != "" {
				return req, fmt.Errorf("malformed --nic %q: only one fixed ip per nic", raw)
			}
			req.FixedIP = value
		default:
			return req, fmt.Errorf("malformed --nic %q: unknown key %q", raw, key)
		}
	}

	switch {
	case req.NetworkID == "" && req.PortID == "":
		return req, fmt.Errorf("malformed --nic %q: net-id or port-id is required", raw)
	case req.PortID != "" && req.FixedIP != "":
		return req, fmt.Errorf("malformed --nic %q: port-id cannot be combined with a fixed ip", raw)
	}
	return req, nil
}

func parseNICs(raws []string) ([]domain.RequestedNetwork, error) {
	out := make([]domain.RequestedNetwork, 0, len(raws))
	for _, raw := range raws {
		req, err := parseNIC(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
