package topology

import "fmt"

// =============================================================================
// Network Binding Validation
// =============================================================================

// ValidateBindings inspects service names, load-balancer targets and port
// bindings and reports every finding as a warning. It never fails.
//
// Warnings are produced in a single pass, in this order:
//  1. duplicate service-discovery names (WarningDuplicatePort)
//  2. targets pointing at an undeclared unit port (WarningUnboundTarget)
//  3. a unit binding the same port and protocol twice (WarningConflictingPort)
func ValidateBindings(units []Unit, targets []Target) []Warning {
	var warnings []Warning

	owners := make(map[string]string)
	for _, u := range units {
		if u.ServiceName == "" {
			continue
		}
		if first, taken := owners[u.ServiceName]; taken {
			warnings = append(warnings, Warning{
				Kind:    WarningDuplicatePort,
				Message: fmt.Sprintf("service name %q is used by both %q and %q", u.ServiceName, first, u.Name),
				Units:   []string{first, u.Name},
			})
			continue
		}
		owners[u.ServiceName] = u.Name
	}

	byName := make(map[string]Unit, len(units))
	for _, u := range units {
		byName[u.Name] = u
	}
	for _, t := range targets {
		u, ok := byName[t.Unit]
		if !ok {
			warnings = append(warnings, Warning{
				Kind:    WarningUnboundTarget,
				Message: fmt.Sprintf("listener %d targets %s:%d but unit %q is not declared", t.ListenerPort, t.Unit, t.Port, t.Unit),
				Units:   []string{t.Unit},
			})
			continue
		}
		proto := t.Protocol.Transport()
		if !u.HasBinding(t.Port, proto) {
			warnings = append(warnings, Warning{
				Kind:    WarningUnboundTarget,
				Message: fmt.Sprintf("listener %d targets %s:%d/%s which unit %q does not bind", t.ListenerPort, t.Unit, t.Port, proto, t.Unit),
				Units:   []string{t.Unit},
			})
		}
	}

	for _, u := range units {
		seen := make(map[PortBinding]bool, len(u.Ports))
		reported := make(map[PortBinding]bool)
		for _, b := range u.Ports {
			if seen[b] && !reported[b] {
				reported[b] = true
				warnings = append(warnings, Warning{
					Kind:    WarningConflictingPort,
					Message: fmt.Sprintf("unit %q binds %d/%s more than once", u.Name, b.Port, b.Protocol),
					Units:   []string{u.Name},
				})
			}
			seen[b] = true
		}
	}

	return warnings
}
